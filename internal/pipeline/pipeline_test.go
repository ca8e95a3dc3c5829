package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/categories"
	"github.com/samvad-hq/samvad-news-digest/internal/dedup"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/internal/extractor"
	"github.com/samvad-hq/samvad-news-digest/internal/summarizer"
	"github.com/samvad-hq/samvad-news-digest/internal/validator"
	"github.com/samvad-hq/samvad-news-digest/pkg/httpclient"
	"github.com/samvad-hq/samvad-news-digest/pkg/publishers"
)

// fakeSource serves preset candidates per token.
type fakeSource struct {
	byToken map[string][]domain.Candidate
	calls   []string
}

func (f *fakeSource) Fetch(_ context.Context, token string, n int, known map[string]struct{}) []domain.Candidate {
	f.calls = append(f.calls, token)
	var out []domain.Candidate
	for _, c := range f.byToken[token] {
		if _, ok := known[c.URL]; ok {
			continue
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out
}

// memStore is an in-memory ArticleStore that also satisfies dedup.Lookup.
type memStore struct {
	mu        sync.Mutex
	articles  map[string]domain.Article
	insertErr error
	sweepErr  error
	swept     time.Duration
}

func newMemStore() *memStore { return &memStore{articles: map[string]domain.Article{}} }

func (m *memStore) KnownURLs(context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.articles))
	for u := range m.articles {
		out[u] = struct{}{}
	}
	return out, nil
}

func (m *memStore) Exists(_ context.Context, url, titleHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		if a.URL == url || a.TitleHash == titleHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Insert(_ context.Context, a *domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.articles[a.URL]; ok {
		return &domain.DuplicateKeyError{Field: "url", Value: a.URL}
	}
	a.ID = fmt.Sprintf("id-%d", len(m.articles)+1)
	m.articles[a.URL] = *a
	return nil
}

func (m *memStore) DeleteOlderThan(_ context.Context, horizon time.Duration) (int, error) {
	m.swept = horizon
	return 0, m.sweepErr
}

func (m *memStore) Stats(context.Context, time.Time) (domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Stats{TotalArticles: int64(len(m.articles))}, nil
}

// textExtractor returns a fixed text per url, or an exhausted error when none is set.
type textExtractor struct {
	texts map[string]string
}

func (f *textExtractor) Extract(_ context.Context, c domain.Candidate) (domain.ExtractionResult, error) {
	text, ok := f.texts[c.URL]
	if !ok {
		return domain.ExtractionResult{}, &domain.ExtractionExhaustedError{URL: c.URL}
	}
	return domain.ExtractionResult{Text: text, WordCount: len(strings.Fields(text)), Method: domain.MethodReadability}, nil
}

// fakeSummarizer returns an llm summary unless the title says otherwise.
type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(_ context.Context, title, _ string) (domain.Summary, error) {
	switch {
	case strings.Contains(title, "extractivo"):
		return domain.Summary{Text: "resumen extractivo", Method: domain.SummaryExtractive}, nil
	case strings.Contains(title, "sin resumen"):
		return domain.Summary{}, &domain.SummaryUnavailableError{Reason: "extractive fallback too short"}
	}
	return domain.Summary{Text: "resumen del modelo", Method: domain.SummaryLLM, Model: "fake"}, nil
}

type recordingPublisher struct {
	events []publishers.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	r.events = append(r.events, evt)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

type recordingRecorder struct {
	outcomes map[domain.Outcome]int
	runs     int
}

func (r *recordingRecorder) Outcome(_ domain.Category, o domain.Outcome) {
	if r.outcomes == nil {
		r.outcomes = map[domain.Outcome]int{}
	}
	r.outcomes[o]++
}
func (r *recordingRecorder) Extraction(domain.ExtractionMethod)  {}
func (r *recordingRecorder) StageDuration(string, time.Duration) {}
func (r *recordingRecorder) Run(domain.RunReport)                { r.runs++ }

const articleText = "El ministerio de Salud anunció este martes una nueva campaña de vacunación que comenzará en marzo. " +
	"Según el informe oficial, las autoridades esperan inmunizar a dos millones de personas antes del invierno. " +
	"Los hospitales públicos ampliarán sus horarios de atención durante las próximas semanas."

func candidate(token, slug, title string) domain.Candidate {
	return domain.Candidate{
		URL:           "https://diario.example/" + token + "/" + slug,
		Title:         title,
		Description:   "Descripción breve de la noticia publicada hoy.",
		PublishedAt:   time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC),
		SourceName:    "Diario Ejemplo",
		CategoryToken: token,
	}
}

func mapping(t *testing.T) *categories.Mapping {
	t.Helper()
	m, err := categories.New(domain.CategoryGeneral, []categories.Entry{
		{Token: "health", Name: domain.CategoryHealth},
		{Token: "sports", Name: domain.CategorySports},
	})
	if err != nil {
		t.Fatalf("categories.New: %v", err)
	}
	return m
}

type harness struct {
	svc       *Service
	source    *fakeSource
	store     *memStore
	extractor *textExtractor
	pub       *recordingPublisher
	rec       *recordingRecorder
	sleeps    []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:    &fakeSource{byToken: map[string][]domain.Candidate{}},
		store:     newMemStore(),
		extractor: &textExtractor{texts: map[string]string{}},
		pub:       &recordingPublisher{},
		rec:       &recordingRecorder{},
	}
	h.svc = NewService(Deps{
		Categories: mapping(t),
		Source:     h.source,
		Dedup:      dedup.New(h.store),
		Extractor:  h.extractor,
		Validator:  validator.New(validator.DefaultOptions()),
		Summarizer: fakeSummarizer{},
		Store:      h.store,
		Publisher:  h.pub,
		Recorder:   h.rec,
	}, Options{ArticlesPerCategory: 5, CategoryDelay: 3 * time.Second, Retention: 180 * 24 * time.Hour})
	h.svc.sleep = func(ctx context.Context, d time.Duration) bool {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err() == nil
	}
	return h
}

func (h *harness) add(c domain.Candidate, text string) {
	h.source.byToken[c.CategoryToken] = append(h.source.byToken[c.CategoryToken], c)
	if text != "" {
		h.extractor.texts[c.URL] = text
	}
}

func TestRunClassifiesEveryOutcome(t *testing.T) {
	h := newHarness(t)
	h.add(candidate("health", "llm", "Campaña de vacunación nacional"), articleText)
	h.add(candidate("health", "fallback", "Hospitales extractivo amplían horarios"), articleText)
	h.add(candidate("health", "empty", "Página sin texto útil"), "")
	h.add(candidate("sports", "junk", "Portada con scripts incrustados"), "<div> <div> <div> function(x) var a = 1; "+articleText)
	h.add(candidate("sports", "short", "Nota sin resumen posible"), articleText)
	dupTitle := candidate("sports", "dup", "Campaña de vacunación nacional")
	h.add(dupTitle, articleText)

	report, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Saved != 2 || report.SavedLLM != 1 || report.SavedFallback != 1 {
		t.Fatalf("unexpected saved counts: saved=%d llm=%d fallback=%d", report.Saved, report.SavedLLM, report.SavedFallback)
	}
	if report.FetchFailed != 1 || report.Rejected != 2 || report.Duplicates != 1 || report.StoreFailed != 0 {
		t.Fatalf("unexpected failure counts: fetch=%d rejected=%d dup=%d store=%d",
			report.FetchFailed, report.Rejected, report.Duplicates, report.StoreFailed)
	}
	if report.Totals.TotalArticles != 2 {
		t.Fatalf("expected 2 stored articles, got %d", report.Totals.TotalArticles)
	}
	if len(report.Categories) != 2 {
		t.Fatalf("expected 2 category reports, got %d", len(report.Categories))
	}
	health, sports := report.Categories[0], report.Categories[1]
	if health.Category != domain.CategoryHealth || health.Candidates != 3 || health.Saved != 2 {
		t.Fatalf("unexpected health report %+v", health)
	}
	if sports.Category != domain.CategorySports {
		t.Fatalf("unexpected sports report %+v", sports)
	}
	if got := strings.Join(h.source.calls, ","); got != "health,sports" {
		t.Fatalf("unexpected fetch order %q", got)
	}

	if len(h.sleeps) != 1 || h.sleeps[0] != 3*time.Second {
		t.Fatalf("delay must only apply between categories, got %v", h.sleeps)
	}
	if h.store.swept != 180*24*time.Hour {
		t.Fatalf("expected sweep with 180 days, got %v", h.store.swept)
	}
	if len(h.pub.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(h.pub.events))
	}
	if h.rec.runs != 1 || h.rec.outcomes[domain.OutcomeDuplicate] != 1 {
		t.Fatalf("unexpected recorder state runs=%d outcomes=%v", h.rec.runs, h.rec.outcomes)
	}

	stored := h.store.articles["https://diario.example/health/llm"]
	if stored.Category != domain.CategoryHealth || stored.SummaryMethod != domain.SummaryLLM {
		t.Fatalf("unexpected stored article %+v", stored)
	}
	if stored.TitleHash != dedup.TitleHash("Campaña de vacunación nacional") {
		t.Fatalf("title hash not set from the title: %q", stored.TitleHash)
	}
}

func TestRunStoresCopyWhenEarlierCopyFailed(t *testing.T) {
	h := newHarness(t)
	// Same story under two urls; the first page yields no text.
	h.add(candidate("health", "sin-texto", "Campaña de vacunación nacional"), "")
	h.add(candidate("health", "con-texto", "Campaña de vacunación nacional"), articleText)

	report, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.FetchFailed != 1 || report.Saved != 1 || report.Duplicates != 0 {
		t.Fatalf("expected fetch_failed=1 saved=1 duplicates=0, got fetch_failed=%d saved=%d duplicates=%d",
			report.FetchFailed, report.Saved, report.Duplicates)
	}
	if _, ok := h.store.articles["https://diario.example/health/con-texto"]; !ok {
		t.Fatalf("second copy was not stored")
	}
}

func TestRunRejectsSecondCopyOfStoredStory(t *testing.T) {
	h := newHarness(t)
	h.add(candidate("health", "a", "Campaña de vacunación nacional"), articleText)
	h.add(candidate("health", "b", "Campaña de vacunación nacional"), articleText)

	report, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Saved != 1 || report.Duplicates != 1 {
		t.Fatalf("expected saved=1 duplicates=1, got saved=%d duplicates=%d", report.Saved, report.Duplicates)
	}
}

// panickyExtractor panics for one url and delegates the rest.
type panickyExtractor struct {
	url  string
	next ContentExtractor
}

func (p panickyExtractor) Extract(ctx context.Context, c domain.Candidate) (domain.ExtractionResult, error) {
	if c.URL == p.url {
		panic("parser exploded")
	}
	return p.next.Extract(ctx, c)
}

func TestRunSurvivesPanickingStage(t *testing.T) {
	h := newHarness(t)
	bad := candidate("health", "bad", "Página que rompe el parser")
	h.add(bad, articleText)
	h.add(candidate("health", "ok", "Campaña de vacunación nacional"), articleText)
	h.svc.deps.Extractor = panickyExtractor{url: bad.URL, next: h.extractor}

	report, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.FetchFailed != 1 || report.Saved != 1 {
		t.Fatalf("expected the panic to count as fetch_failed and the run to continue, got fetch_failed=%d saved=%d",
			report.FetchFailed, report.Saved)
	}
	if h.store.swept == 0 {
		t.Fatalf("sweep should still run")
	}
}

func TestRunSkipsStoredURLsAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.add(candidate("health", "a", "Campaña de vacunación nacional"), articleText)

	first, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Saved != 1 {
		t.Fatalf("expected 1 saved on first run, got %d", first.Saved)
	}

	second, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Saved != 0 {
		t.Fatalf("expected nothing saved on second run, got %d", second.Saved)
	}
	if second.Categories[0].Candidates != 0 {
		t.Fatalf("known urls must be filtered at the source, got %d candidates", second.Categories[0].Candidates)
	}
	if len(h.store.articles) != 1 {
		t.Fatalf("expected 1 stored article, got %d", len(h.store.articles))
	}
}

func TestRunStoreAndPublishFailures(t *testing.T) {
	h := newHarness(t)
	h.add(candidate("health", "a", "Campaña de vacunación nacional"), articleText)
	h.store.insertErr = errors.New("disk full")

	report, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StoreFailed != 1 {
		t.Fatalf("expected 1 store failure, got %d", report.StoreFailed)
	}
	if len(h.pub.events) != 0 {
		t.Fatalf("nothing should be published after a failed insert, got %d", len(h.pub.events))
	}

	h = newHarness(t)
	h.add(candidate("health", "a", "Campaña de vacunación nacional"), articleText)
	h.pub.err = errors.New("sink down")
	report, err = h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Saved != 1 {
		t.Fatalf("publish failures must not change the outcome, saved=%d", report.Saved)
	}
}

func TestRunRecordsSweepFailure(t *testing.T) {
	h := newHarness(t)
	h.store.sweepErr = errors.New("locked")

	report, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.SweepError != "locked" {
		t.Fatalf("expected sweep error to be reported, got %q", report.SweepError)
	}
	if report.Saved != 0 {
		t.Fatalf("expected nothing saved, got %d", report.Saved)
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	if _, err := NewService(Deps{}, Options{}).Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}

	var nilSvc *Service
	if _, err := nilSvc.Run(context.Background()); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.add(candidate("health", "a", "Campaña de vacunación nacional"), articleText)
	h.add(candidate("sports", "b", "Final del campeonato regional"), articleText)

	ctx, cancel := context.WithCancel(context.Background())
	h.svc.sleep = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}

	report, err := h.svc.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Saved != 1 {
		t.Fatalf("expected the partial report to keep 1 saved, got %d", report.Saved)
	}
	if len(h.source.calls) != 1 || h.source.calls[0] != "health" {
		t.Fatalf("expected only health to be fetched, got %v", h.source.calls)
	}
	if h.store.swept != 0 {
		t.Fatalf("no sweep after cancellation, got %v", h.store.swept)
	}
}

// notFoundClient answers every page request with 404.
type notFoundClient struct{}

type notFoundResponse struct{}

func (notFoundResponse) Body() []byte         { return nil }
func (notFoundResponse) StatusCode() int      { return 404 }
func (notFoundResponse) Header(string) string { return "" }

func (notFoundClient) Get(context.Context, string, map[string]string) (httpclient.Response, error) {
	return notFoundResponse{}, nil
}

type placeholderModel struct{}

func (placeholderModel) Complete(context.Context, string) (string, error) {
	return "Contenido insuficiente para generar un resumen.", nil
}
func (placeholderModel) Model() string { return "placeholder" }

func TestRunWithRealStages(t *testing.T) {
	h := newHarness(t)
	h.svc.deps.Extractor = extractor.New(notFoundClient{}, extractor.DefaultOptions(), nil)
	h.svc.deps.Summarizer = summarizer.New(placeholderModel{}, summarizer.DefaultOptions(), nil)

	// Unreachable page and a 25-word description: every extractor stage fails.
	short := candidate("health", "short-desc", "Anuncio breve del ministerio")
	short.Description = strings.TrimSpace(strings.Repeat("palabra ", 25))
	h.add(short, "")

	// Unreachable page but a usable description that still yields a too-short summary.
	thin := candidate("sports", "thin", "Resultado del partido de anoche")
	thin.Description = articleText
	h.add(thin, "")

	report, err := h.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.FetchFailed != 1 || report.Rejected != 1 || report.Saved != 0 {
		t.Fatalf("expected fetch_failed=1 rejected=1 saved=0, got fetch_failed=%d rejected=%d saved=%d",
			report.FetchFailed, report.Rejected, report.Saved)
	}
	if len(h.store.articles) != 0 {
		t.Fatalf("nothing should be stored, got %d", len(h.store.articles))
	}
}
