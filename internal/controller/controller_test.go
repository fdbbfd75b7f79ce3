package controller

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"face-search/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type searchReply struct {
	results []models.SearchResult
	err     error
}

// searchCall - один запрос к фейковому шлюзу, отвечаем вручную
type searchCall struct {
	snap    models.Snapshot
	respond chan searchReply
}

func (c *searchCall) reply(results []models.SearchResult, err error) {
	c.respond <- searchReply{results: results, err: err}
}

type fakeSearcher struct {
	calls chan *searchCall
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{calls: make(chan *searchCall, 32)}
}

func (f *fakeSearcher) EncodeFace(ctx context.Context, snap models.Snapshot) ([]models.SearchResult, error) {
	call := &searchCall{snap: snap, respond: make(chan searchReply, 1)}
	f.calls <- call
	select {
	case r := <-call.respond:
		return r.results, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSearcher) next(t *testing.T) *searchCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(waitFor):
		t.Fatal("ожидался запрос к шлюзу")
		return nil
	}
}

func (f *fakeSearcher) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("неожиданный запрос к шлюзу: %+v", call.snap.Params)
	case <-time.After(50 * time.Millisecond):
	}
}

func startController(t *testing.T) (*Controller, *fakeSearcher) {
	t.Helper()
	searcher := newFakeSearcher()
	c := New(searcher, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c, searcher
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 1, 1), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func waitStatus(t *testing.T, c *Controller, status models.SessionStatus) models.Session {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Session().Status == status
	}, waitFor, tick)
	return c.Session()
}

func waitIdlePending(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Pending() == 0
	}, waitFor, tick)
}

var (
	alice = models.SearchResult{ID: 1, Name: "Alice", Distance: 0.03, ImageBase64: "QUFB"}
	bob   = models.SearchResult{ID: 2, Name: "Bob", Distance: 0.05, ImageBase64: "QkJC"}
	carol = models.SearchResult{ID: 3, Name: "Carol", Distance: 0.4, ImageBase64: "Q0ND"}
)

func TestInitialSession(t *testing.T) {
	c, _ := startController(t)

	s := c.Session()
	assert.Equal(t, models.StatusIdle, s.Status)
	assert.Nil(t, s.Image)
	assert.Equal(t, models.DefaultParameters(), s.Params)
	assert.False(t, s.HasEverQueried)
	assert.Equal(t, 0, c.Pending())
}

func TestSubmitImageSuccess(t *testing.T) {
	c, searcher := startController(t)
	data := pngBytes(t)

	c.SubmitImage(bytes.NewReader(data))

	call := searcher.next(t)
	assert.Equal(t, "data:image/png;base64,", call.snap.Image[:len("data:image/png;base64,")])
	assert.Equal(t, models.DefaultParameters(), call.snap.Params)

	s := waitStatus(t, c, models.StatusQuerying)
	require.NotNil(t, s.Image)
	assert.Equal(t, "png", s.Image.MediaType)
	assert.Equal(t, data, s.Image.Data)
	assert.Equal(t, 1, c.Pending())

	call.reply([]models.SearchResult{alice, bob}, nil)

	s = waitStatus(t, c, models.StatusSuccess)
	assert.Equal(t, []models.SearchResult{alice, bob}, s.Results)
	assert.True(t, s.HasEverQueried)
	assert.Empty(t, s.ErrorMessage)
	waitIdlePending(t, c)
}

func TestEmptyResultIsSuccess(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply(nil, nil)

	s := waitStatus(t, c, models.StatusSuccess)
	assert.NotNil(t, s.Results)
	assert.Empty(t, s.Results)
	assert.True(t, s.HasEverQueried)
}

func TestStaleResponseDiscarded(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	first := searcher.next(t)

	require.NoError(t, c.UpdateParameter(models.ParamToleranceVar, "0.5"))
	second := searcher.next(t)

	assert.Less(t, first.snap.Seq, second.snap.Seq)
	assert.Equal(t, 0.05, first.snap.Params.ToleranceVar)
	assert.Equal(t, 0.5, second.snap.Params.ToleranceVar)
	assert.Equal(t, 2, c.Pending())

	// Новый ответ приходит первым, старый следом
	second.reply([]models.SearchResult{bob}, nil)
	waitStatus(t, c, models.StatusSuccess)
	first.reply([]models.SearchResult{alice, carol}, nil)
	waitIdlePending(t, c)

	s := c.Session()
	assert.Equal(t, models.StatusSuccess, s.Status)
	assert.Equal(t, []models.SearchResult{bob}, s.Results)
}

func TestStaleResponseArrivingFirstKeepsQuerying(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	first := searcher.next(t)
	require.NoError(t, c.UpdateParameter(models.ParamNumRows, "3"))
	second := searcher.next(t)

	first.reply([]models.SearchResult{alice}, errors.New("HTTP error! status: 500 - Failed to encode a face"))
	require.Eventually(t, func() bool { return c.Pending() == 1 }, waitFor, tick)
	assert.Equal(t, models.StatusQuerying, c.Session().Status)

	second.reply([]models.SearchResult{carol}, nil)
	s := waitStatus(t, c, models.StatusSuccess)
	assert.Equal(t, []models.SearchResult{carol}, s.Results)
	assert.Equal(t, 3, second.snap.Params.NumRows)
}

func TestSearchFailure(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply(nil, errors.New("HTTP error! status: 500 - Failed to encode a face"))

	s := waitStatus(t, c, models.StatusError)
	assert.Equal(t, "HTTP error! status: 500 - Failed to encode a face", s.ErrorMessage)
	assert.Nil(t, s.Results)
	assert.NotNil(t, s.Image)
	assert.True(t, s.HasEverQueried)
}

func TestParameterChangeAfterTerminalStateRequeries(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply(nil, errors.New("boom"))
	waitStatus(t, c, models.StatusError)

	require.NoError(t, c.UpdateParameter(models.ParamMinAge, "30"))
	assert.Equal(t, models.StatusQuerying, c.Session().Status)
	assert.Empty(t, c.Session().ErrorMessage)

	call := searcher.next(t)
	assert.Equal(t, 30, call.snap.Params.MinAge)
	call.reply([]models.SearchResult{alice}, nil)
	waitStatus(t, c, models.StatusSuccess)
}

func TestNumRowsBounds(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply(nil, nil)
	waitStatus(t, c, models.StatusSuccess)

	for _, value := range []string{"0", "21"} {
		err := c.UpdateParameter(models.ParamNumRows, value)
		assert.ErrorIs(t, err, models.ErrParameterOutOfRange)
	}
	err := c.UpdateParameter(models.ParamNumRows, "ten")
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
	searcher.assertNoCall(t)
	assert.Equal(t, models.StatusSuccess, c.Session().Status)
	assert.Equal(t, 10, c.Session().Params.NumRows)

	for _, value := range []string{"1", "20"} {
		require.NoError(t, c.UpdateParameter(models.ParamNumRows, value))
		call := searcher.next(t)
		assert.Equal(t, value, call.snap.Params.Get(models.ParamNumRows))
		call.reply(nil, nil)
	}
	waitIdlePending(t, c)
	assert.Equal(t, 20, c.Session().Params.NumRows)
}

func TestToleranceRejectsNonFinite(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply([]models.SearchResult{alice}, nil)
	waitStatus(t, c, models.StatusSuccess)

	for _, value := range []string{"NaN", "nan", "Inf", "-Inf", "+Inf"} {
		err := c.UpdateParameter(models.ParamToleranceVar, value)
		assert.ErrorIs(t, err, models.ErrParameterOutOfRange, value)
	}
	searcher.assertNoCall(t)

	s := c.Session()
	assert.Equal(t, models.StatusSuccess, s.Status)
	assert.Equal(t, 0.05, s.Params.ToleranceVar)
	assert.Equal(t, []models.SearchResult{alice}, s.Results)
}

func TestImageReadError(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(strings.NewReader("definitely not an image"))

	s := waitStatus(t, c, models.StatusError)
	assert.Equal(t, "Failed to read file.", s.ErrorMessage)
	assert.Nil(t, s.Image)
	assert.True(t, s.HasEverQueried)
	searcher.assertNoCall(t)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestImageReadErrorOnIO(t *testing.T) {
	c, _ := startController(t)

	c.SubmitImage(failingReader{})

	s := waitStatus(t, c, models.StatusError)
	assert.Equal(t, "Failed to read file.", s.ErrorMessage)
}

func TestClearImageDiscardsInFlight(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	call := searcher.next(t)
	c.ClearImage()

	s := waitStatus(t, c, models.StatusIdle)
	assert.Nil(t, s.Image)
	assert.False(t, s.HasEverQueried)

	call.reply([]models.SearchResult{alice}, nil)
	waitIdlePending(t, c)
	assert.Equal(t, models.StatusIdle, c.Session().Status)
	assert.Nil(t, c.Session().Results)
}

func TestClearImageResetsTerminalState(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply([]models.SearchResult{alice}, nil)
	waitStatus(t, c, models.StatusSuccess)
	require.NoError(t, c.UpdateParameter(models.ParamMaxAge, "50"))
	searcher.next(t).reply([]models.SearchResult{bob}, nil)
	waitIdlePending(t, c)

	c.ClearImage()
	s := waitStatus(t, c, models.StatusIdle)
	assert.Nil(t, s.Results)
	assert.Empty(t, s.ErrorMessage)
	assert.False(t, s.HasEverQueried)
	assert.Equal(t, 50, s.Params.MaxAge)
}

func TestParameterChangeWithoutImage(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(strings.NewReader("garbage"))
	waitStatus(t, c, models.StatusError)

	require.NoError(t, c.UpdateParameter(models.ParamToleranceVar, "0.2"))
	s := c.Session()
	assert.Equal(t, models.StatusIdle, s.Status)
	assert.Empty(t, s.ErrorMessage)
	assert.Equal(t, 0.2, s.Params.ToleranceVar)
	searcher.assertNoCall(t)
}

func TestNewSelectionSupersedesPrevious(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	first := searcher.next(t)

	c.SubmitImage(bytes.NewReader(gifBytes(t)))
	second := searcher.next(t)
	assert.Contains(t, second.snap.Image, "data:image/gif;base64,")

	second.reply([]models.SearchResult{bob}, nil)
	first.reply([]models.SearchResult{alice}, nil)
	waitIdlePending(t, c)

	s := c.Session()
	assert.Equal(t, "gif", s.Image.MediaType)
	assert.Equal(t, []models.SearchResult{bob}, s.Results)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	c, searcher := startController(t)
	updates := c.Subscribe()

	initial := <-updates
	assert.Equal(t, models.StatusIdle, initial.Status)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply([]models.SearchResult{alice}, nil)

	var seen []models.SessionStatus
	timeout := time.After(waitFor)
	for len(seen) == 0 || seen[len(seen)-1] != models.StatusSuccess {
		select {
		case s := <-updates:
			seen = append(seen, s.Status)
		case <-timeout:
			t.Fatalf("не дождались Success, получили %v", seen)
		}
	}
	assert.Contains(t, seen, models.StatusQuerying)
}

func TestSessionIsACopy(t *testing.T) {
	c, searcher := startController(t)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply([]models.SearchResult{alice}, nil)
	s := waitStatus(t, c, models.StatusSuccess)

	s.Results[0].Name = "Mallory"
	s.Image.MediaType = "gif"

	fresh := c.Session()
	assert.Equal(t, "Alice", fresh.Results[0].Name)
	assert.Equal(t, "png", fresh.Image.MediaType)
}

func TestStoppedController(t *testing.T) {
	c := New(newFakeSearcher(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	updates := c.Subscribe()
	<-updates
	cancel()
	<-c.Done()

	// Канал подписки закрыт после остановки
	for range updates {
	}
	assert.ErrorIs(t, c.UpdateParameter(models.ParamNumRows, "5"), context.Canceled)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c, searcher := startController(t)

	kept := c.Subscribe()
	dropped := c.Subscribe()
	<-kept
	<-dropped

	c.Unsubscribe(dropped)
	timeout := time.After(waitFor)
	for closed := false; !closed; {
		select {
		case _, ok := <-dropped:
			closed = !ok
		case <-timeout:
			t.Fatal("канал не закрыт после Unsubscribe")
		}
	}

	// Остальные подписчики продолжают получать переходы
	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t).reply(nil, nil)
	for {
		select {
		case s := <-kept:
			if s.Status == models.StatusSuccess {
				return
			}
		case <-time.After(waitFor):
			t.Fatal("не дождались Success")
		}
	}
}

func TestStopDrainsQueuedEvents(t *testing.T) {
	c := New(newFakeSearcher(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	sub := make(chan models.Session, 1)
	reply := make(chan error, 1)
	c.pending.Add(1)
	c.events <- searchDoneEvent{seq: 1}
	c.events <- subscribeEvent{ch: sub}
	c.events <- updateParameterEvent{name: models.ParamNumRows, value: "5", reply: reply}

	c.stop()

	assert.Equal(t, 0, c.Pending())
	_, ok := <-sub
	assert.False(t, ok)
	assert.ErrorIs(t, <-reply, context.Canceled)

	// После остановки в очередь ничего не попадает
	assert.False(t, c.send(clearImageEvent{}))
	assert.Empty(t, c.events)
}

func TestStopWithSearchInFlight(t *testing.T) {
	searcher := newFakeSearcher()
	c := New(searcher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	c.SubmitImage(bytes.NewReader(pngBytes(t)))
	searcher.next(t)
	assert.Equal(t, 1, c.Pending())

	cancel()
	<-c.Done()

	require.Eventually(t, func() bool {
		return c.Pending() == 0
	}, waitFor, tick)
}
