package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task периодическая фоновая задача
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker не даёт одной задаче выполняться одновременно на нескольких инстансах.
// Корректность данных от него не зависит, он только экономит работу.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Scheduler управляет фоновыми задачами. Каждая задача крутится в своей
// горутине со своим тикером; общего состояния у задач нет.
type Scheduler struct {
	tasks    []Task
	locker   Locker
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик; locker может быть nil
func NewScheduler(locker Locker, logger *zap.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		locker:   locker,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Int("tasks", len(s.tasks)))

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}
}

// Stop останавливает фоновые задачи и ждёт завершения текущих запусков
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.execute(ctx, task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.execute(ctx, task)
		case <-s.stopChan:
			s.logger.Info("Task stopped", zap.String("task", task.Name))
			return
		case <-ctx.Done():
			s.logger.Info("Task cancelled", zap.String("task", task.Name))
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, "lock:"+task.Name, task.Interval)
		if err != nil {
			// Без блокировки всё равно работаем: записи защищены условными UPDATE
			s.logger.Warn("Failed to take task lease", zap.String("task", task.Name), zap.Error(err))
		} else if !ok {
			s.logger.Debug("Task is running elsewhere", zap.String("task", task.Name))
			return
		} else {
			defer release()
		}
	}

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Error("Task failed", zap.String("task", task.Name), zap.Error(err))
		return
	}
	s.logger.Debug("Task completed", zap.String("task", task.Name), zap.Duration("took", time.Since(start)))
}
