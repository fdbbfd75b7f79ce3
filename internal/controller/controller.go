package controller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"face-search/internal/models"
)

// Searcher - вызов шлюза /api/encode_face (pkg/gateway_client)
type Searcher interface {
	EncodeFace(ctx context.Context, snap models.Snapshot) ([]models.SearchResult, error)
}

const subscriberBuffer = 16

type event any

type submitImageEvent struct {
	r io.Reader
}

type imageDecodedEvent struct {
	gen   uint64
	image *models.UploadedImage
	err   error
}

type updateParameterEvent struct {
	name  string
	value string
	reply chan error
}

type clearImageEvent struct{}

type searchDoneEvent struct {
	seq     uint64
	results []models.SearchResult
	err     error
}

type subscribeEvent struct {
	ch chan models.Session
}

type unsubscribeEvent struct {
	ch <-chan models.Session
}

// Controller - конечный автомат сессии поиска.
// Состоянием владеет только горутина Run, остальные методы шлют ей события
type Controller struct {
	searcher Searcher
	logger   *slog.Logger

	events chan event
	done   chan struct{}

	// Только для горутины Run
	session   models.Session
	seq       uint64
	decodeGen uint64
	subs      []chan models.Session
	runCtx    context.Context

	current  atomic.Pointer[models.Session]
	pending  atomic.Int64
	stopOnce sync.Once

	// sendMu.Lock в stop ждет отправителей, closed запрещает новые
	sendMu sync.RWMutex
	closed bool
}

// New создает контроллер с параметрами по умолчанию в состоянии Idle
func New(searcher Searcher, logger *slog.Logger) *Controller {
	c := &Controller{
		searcher: searcher,
		logger:   logger,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		session: models.Session{
			Status: models.StatusIdle,
			Params: models.DefaultParameters(),
		},
	}
	c.publish()
	return c
}

// Run обрабатывает события до отмены ctx (должен работать в отдельной горутине)
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	defer c.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// Done закрывается после выхода из Run
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) stop() {
	c.stopOnce.Do(func() {
		close(c.done)

		c.sendMu.Lock()
		c.closed = true
		c.sendMu.Unlock()

		// События, попавшие в очередь после выхода из цикла
		for drained := false; !drained; {
			select {
			case ev := <-c.events:
				c.discard(ev)
			default:
				drained = true
			}
		}

		for _, ch := range c.subs {
			close(ch)
		}
		c.subs = nil
	})
}

func (c *Controller) discard(ev event) {
	switch ev := ev.(type) {
	case searchDoneEvent:
		c.pending.Add(-1)
	case updateParameterEvent:
		ev.reply <- context.Canceled
	case subscribeEvent:
		close(ev.ch)
	}
}

// SubmitImage выбирает новый файл. Предыдущая сессия сбрасывается,
// файл читается асинхронно
func (c *Controller) SubmitImage(r io.Reader) {
	c.send(submitImageEvent{r: r})
}

// UpdateParameter проверяет и сохраняет новое значение параметра.
// Недопустимое значение отклоняется и до шлюза не доходит
func (c *Controller) UpdateParameter(name, value string) error {
	reply := make(chan error, 1)
	if !c.send(updateParameterEvent{name: name, value: value, reply: reply}) {
		return context.Canceled
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return context.Canceled
	}
}

// ClearImage сбрасывает сессию в Idle. Ответы на уже отправленные запросы игнорируются
func (c *Controller) ClearImage() {
	c.send(clearImageEvent{})
}

// Session возвращает копию текущего состояния
func (c *Controller) Session() models.Session {
	return c.current.Load().Clone()
}

// Pending - число запросов, на которые еще не пришел ответ (включая устаревшие)
func (c *Controller) Pending() int {
	return int(c.pending.Load())
}

// Unsubscribe закрывает канал, полученный из Subscribe
func (c *Controller) Unsubscribe(ch <-chan models.Session) {
	c.send(unsubscribeEvent{ch: ch})
}

// Subscribe возвращает канал с копиями сессии после каждого перехода.
// Первым приходит текущее состояние. Канал закрывается после выхода из Run.
// Медленный подписчик теряет промежуточные состояния, но не последнее
func (c *Controller) Subscribe() <-chan models.Session {
	ch := make(chan models.Session, subscriberBuffer)
	if !c.send(subscribeEvent{ch: ch}) {
		close(ch)
	}
	return ch
}

func (c *Controller) send(ev event) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case submitImageEvent:
		c.handleSubmitImage(ev)
	case imageDecodedEvent:
		c.handleImageDecoded(ev)
	case updateParameterEvent:
		ev.reply <- c.handleUpdateParameter(ev.name, ev.value)
	case clearImageEvent:
		c.reset()
		c.decodeGen++
		c.logger.Debug("изображение очищено", "seq", c.seq)
		c.publish()
	case searchDoneEvent:
		c.handleSearchDone(ev)
	case subscribeEvent:
		c.subs = append(c.subs, ev.ch)
		ev.ch <- c.session.Clone()
	case unsubscribeEvent:
		for i, ch := range c.subs {
			if (<-chan models.Session)(ch) == ev.ch {
				close(ch)
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
	}
}

func (c *Controller) handleSubmitImage(ev submitImageEvent) {
	c.reset()
	c.decodeGen++
	c.publish()

	gen := c.decodeGen
	go func() {
		img, err := DecodeImage(ev.r)
		c.send(imageDecodedEvent{gen: gen, image: img, err: err})
	}()
}

func (c *Controller) handleImageDecoded(ev imageDecodedEvent) {
	if ev.gen != c.decodeGen {
		c.logger.Debug("устаревшее изображение отброшено", "gen", ev.gen, "current", c.decodeGen)
		return
	}

	if ev.err != nil {
		c.logger.Warn("⚠️  не удалось прочитать файл", "error", ev.err)
		c.seq++
		c.session.Image = nil
		c.session.Results = nil
		c.session.Status = models.StatusError
		c.session.ErrorMessage = imageReadMessage
		c.session.HasEverQueried = true
		c.publish()
		return
	}

	c.session.Image = ev.image
	c.startSearch()
}

func (c *Controller) handleUpdateParameter(name, value string) error {
	params, err := c.session.Params.With(name, value)
	if err != nil {
		return err
	}
	c.session.Params = params

	if c.session.Image == nil {
		c.reset()
		c.publish()
		return nil
	}

	c.startSearch()
	return nil
}

// reset переводит сессию в Idle и делает все отправленные запросы устаревшими.
// Параметры сохраняются
func (c *Controller) reset() {
	c.seq++
	c.session = models.Session{
		Status: models.StatusIdle,
		Params: c.session.Params,
	}
}

// startSearch переходит в Querying и отправляет запрос со снимком текущих данных
func (c *Controller) startSearch() {
	c.seq++
	snap := models.Snapshot{
		Seq:    c.seq,
		Image:  c.session.Image.DataURI(),
		Params: c.session.Params,
	}

	c.session.Status = models.StatusQuerying
	c.session.Results = nil
	c.session.ErrorMessage = ""
	c.publish()

	c.pending.Add(1)
	ctx := c.runCtx
	c.logger.Debug("запрос поиска", "seq", snap.Seq, "query", snap.Params.Query())

	go func() {
		results, err := c.searcher.EncodeFace(ctx, snap)
		if !c.send(searchDoneEvent{seq: snap.Seq, results: results, err: err}) {
			c.pending.Add(-1)
		}
	}()
}

func (c *Controller) handleSearchDone(ev searchDoneEvent) {
	defer c.pending.Add(-1)

	if ev.seq != c.seq {
		c.logger.Debug("устаревший ответ отброшен", "seq", ev.seq, "current", c.seq)
		return
	}

	c.session.HasEverQueried = true
	if ev.err != nil {
		c.session.Status = models.StatusError
		c.session.Results = nil
		c.session.ErrorMessage = ev.err.Error()
		if c.session.ErrorMessage == "" {
			c.session.ErrorMessage = "Unknown error"
		}
	} else {
		c.session.Status = models.StatusSuccess
		c.session.ErrorMessage = ""
		c.session.Results = ev.results
		if c.session.Results == nil {
			c.session.Results = []models.SearchResult{}
		}
	}
	c.publish()
}

// publish обновляет снимок для Session и рассылает его подписчикам
func (c *Controller) publish() {
	snapshot := c.session.Clone()
	c.current.Store(&snapshot)

	for _, ch := range c.subs {
		s := c.session.Clone()
		select {
		case ch <- s:
		default:
			// Канал полон: выбрасываем самое старое состояние
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
