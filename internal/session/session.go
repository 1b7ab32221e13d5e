// Package session 把离散的编辑操作变成防抖、无竞态的持久化。
//
// 每个编辑会话持有一个 Session 实例：内存中的规范组件列表、
// 当前背景、保存状态三态机、防抖定时器与"最多一个在途写"的守卫。
// 会话只被其所属的单个调用方驱动，跨会话不加锁（存储层 last-writer-wins）。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"blocpage/internal/content"
)

// Status 是保存状态三态。
type Status string

const (
	StatusSaved  Status = "saved"
	StatusSaving Status = "saving"
	StatusError  Status = "error"
)

// DefaultDebounceWindow 是编辑后合并写入的缺省静默窗口。
const DefaultDebounceWindow = 3 * time.Second

var (
	ErrComponentNotFound = errors.New("component not found")
	ErrIndexOutOfRange   = errors.New("reorder index out of range")
	ErrClosed            = errors.New("session closed")
)

// DocumentWriter 是会话背后的持久化接口。
// 写入是异步世界里唯一的挂起点；实现不得阻塞调用方之外的状态。
type DocumentWriter interface {
	WriteDocument(ctx context.Context, doc content.Document) error
}

// Session 是一次编辑会话的全部可变状态。
type Session struct {
	writer   DocumentWriter
	debounce time.Duration
	logger   *slog.Logger

	// onStatus 在状态变化时被回调（已在锁外），用于推送给前端。
	onStatus func(Status)

	mu         sync.Mutex
	components []content.Component
	background content.Background
	status     Status
	savedAt    time.Time
	timer      *time.Timer
	inFlight   bool
	dirty      bool
	closed     bool
}

// Option 配置 Session。
type Option func(*Session)

// WithDebounceWindow 覆盖缺省防抖窗口。
func WithDebounceWindow(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithStatusListener 注册保存状态回调。
func WithStatusListener(fn func(Status)) Option {
	return func(s *Session) { s.onStatus = fn }
}

// WithLogger 覆盖缺省 logger。
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New 以一份已校验的文档为起点构造编辑会话。
func New(writer DocumentWriter, doc content.Document, opts ...Option) *Session {
	doc = content.ValidateDocument(doc)
	s := &Session{
		writer:     writer,
		debounce:   DefaultDebounceWindow,
		logger:     slog.Default(),
		components: doc.Components,
		background: doc.Background,
		status:     StatusSaved,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Document 返回当前内存态的快照。
func (s *Session) Document() content.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Status 返回当前保存状态。
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SavedAt 返回最近一次成功写入的时间。
func (s *Session) SavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedAt
}

// InFlight 报告当前是否有写入在途。页面卸载时只有它为真才需要提醒用户。
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Add 追加一个新块，order = 当前长度，内容为类型缺省值。
func (s *Session) Add(t content.BlockType) (content.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return content.Component{}, ErrClosed
	}

	comp := content.Component{
		ID:      uuid.NewString(),
		Type:    t,
		Order:   len(s.components),
		Content: content.DefaultContent(t),
	}
	s.components = append(s.components, comp)
	s.markDirtyLocked()
	return comp, nil
}

// Update 替换指定块的内容。原始内容在这里过校验边界。
func (s *Session) Update(id string, raw map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for i := range s.components {
		if s.components[i].ID != id {
			continue
		}
		s.components[i].Content = content.Validate(s.components[i].Type, raw)
		s.markDirtyLocked()
		return nil
	}
	return ErrComponentNotFound
}

// Delete 移除指定块并重排剩余块的 order。
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for i := range s.components {
		if s.components[i].ID != id {
			continue
		}
		s.components = append(s.components[:i], s.components[i+1:]...)
		s.reindexLocked()
		s.markDirtyLocked()
		return nil
	}
	return ErrComponentNotFound
}

// Reorder 把 from 位置的块移到 to 位置，并把所有块的 order
// 重排为新的位置下标 0..N-1。
func (s *Session) Reorder(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if from < 0 || from >= len(s.components) || to < 0 || to >= len(s.components) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}

	moved := s.components[from]
	rest := append(s.components[:from:from], s.components[from+1:]...)
	s.components = append(rest[:to:to], append([]content.Component{moved}, rest[to:]...)...)
	s.reindexLocked()
	s.markDirtyLocked()
	return nil
}

// SetBackground 替换背景描述。
func (s *Session) SetBackground(bg content.Background) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.background = content.ValidateBackground(bg)
	s.markDirtyLocked()
	return nil
}

// Retry 是保存失败后的手动重试入口：立即尝试一次写入，
// 不等待防抖窗口。
func (s *Session) Retry() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.setStatusLocked(StatusSaving)
	s.mu.Unlock()

	s.persist(context.Background())
}

// Flush 取消挂起的定时器并同步发起一次尽力而为的写入。
// 页面隐藏/卸载与会话关闭时调用。若已有写入在途则直接返回，
// 在途写入不可取消，允许其自行完成或失败。
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimerLocked()
	if !s.dirty || s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.persist(ctx)
}

// Close 终止会话：停表、冲刷、拒绝后续修改。
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)

	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()
	return err
}

// markDirtyLocked 在每次修改后调用：状态置为 saving，
// 重置防抖定时器。调用方必须持有 s.mu。
func (s *Session) markDirtyLocked() {
	s.dirty = true
	s.setStatusLocked(StatusSaving)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		_ = s.persist(context.Background())
	})
}

// persist 发起一次写入。若已有写入在途，本次请求被丢弃而不是排队：
// 在途写入结束后只有新的修改才会再次触发，保证最多一个在途写，
// 也因此不存在乱序完成的窗口。
func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.dirty = false
	doc := s.snapshotLocked()
	s.mu.Unlock()

	err := s.writer.WriteDocument(ctx, doc)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.dirty = true
		s.setStatusLocked(StatusError)
		s.logger.Error("persist document failed", slog.Any("error", err))
	} else {
		s.savedAt = time.Now()
		// 写入期间若有新修改，状态已被 markDirtyLocked 置回 saving，
		// 这里只在没有后续修改时回到 saved。
		if !s.dirty {
			s.setStatusLocked(StatusSaved)
		}
	}
	s.mu.Unlock()
	return err
}

func (s *Session) snapshotLocked() content.Document {
	components := make([]content.Component, len(s.components))
	copy(components, s.components)
	return content.Document{
		Components: components,
		Background: s.background,
		UpdatedAt:  time.Now(),
	}
}

func (s *Session) reindexLocked() {
	for i := range s.components {
		s.components[i].Order = i
	}
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) setStatusLocked(st Status) {
	if s.status == st {
		return
	}
	s.status = st
	if s.onStatus != nil {
		// 回调在锁外执行，避免监听方回调再进会话造成死锁。
		go s.onStatus(st)
	}
}
