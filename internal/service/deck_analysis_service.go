package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-counter-deck/internal/cards"
	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/llm"
	"go-counter-deck/internal/logger"
	"go-counter-deck/internal/observer"
	"go-counter-deck/internal/parser"
	"go-counter-deck/internal/prompt"
	"go-counter-deck/internal/repository"
	"go-counter-deck/internal/storage"
	"go-counter-deck/internal/vision"
	"go-counter-deck/pkg/models"
	"go-counter-deck/pkg/validation"
)

const (
	// MissingInputMessage is returned when neither an image nor deck text was sent
	MissingInputMessage = "Imagem ou texto do deck não fornecido"
	// InvalidArenaMessage is returned for arenas outside the known table
	InvalidArenaMessage = "Arena inválida"

	// DefaultArchiveTimeout bounds the image upload that follows a successful analysis
	DefaultArchiveTimeout = 5 * time.Second
)

// DeckAnalysisService runs the counter-deck pipeline for one request
type DeckAnalysisService interface {
	Analyze(ctx context.Context, session models.Session, req models.AnalysisRequest) (*parser.Parsed, error)
}

// Dependencies are the collaborators of the pipeline. Only Extractor and
// Analyzer are required.
type Dependencies struct {
	Extractor vision.Extractor
	Analyzer  llm.DeckAnalyzer
	Validator *validation.RequestValidator
	Catalog   *cards.Catalog
	History   repository.AnalysisRepository
	Archive   storage.ImageArchive
	Events    observer.Subject

	// ArchiveTimeout defaults to DefaultArchiveTimeout
	ArchiveTimeout time.Duration
}

type deckAnalysisService struct {
	extractor      vision.Extractor
	analyzer       llm.DeckAnalyzer
	validator      *validation.RequestValidator
	catalog        *cards.Catalog
	history        repository.AnalysisRepository
	archive        storage.ImageArchive
	events         observer.Subject
	archiveTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

// NewDeckAnalysisService creates a new deck analysis service
func NewDeckAnalysisService(deps Dependencies) DeckAnalysisService {
	s := &deckAnalysisService{
		extractor:      deps.Extractor,
		analyzer:       deps.Analyzer,
		validator:      deps.Validator,
		catalog:        deps.Catalog,
		history:        deps.History,
		archive:        deps.Archive,
		events:         deps.Events,
		archiveTimeout: deps.ArchiveTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	if s.validator == nil {
		s.validator = validation.NewRequestValidator()
	}
	if s.archive == nil {
		s.archive = storage.NopArchive{}
	}
	if s.archiveTimeout <= 0 {
		s.archiveTimeout = DefaultArchiveTimeout
	}
	if s.events == nil {
		s.events = observer.NewEventPublisher()
	}
	return s
}

// Analyze validates the request, gates image uploads on premium access and
// then runs extraction, prompt building, the AI call and parsing in order.
func (s *deckAnalysisService) Analyze(ctx context.Context, session models.Session, req models.AnalysisRequest) (*parser.Parsed, error) {
	start := s.now()
	requestID := s.newID()
	premium := s.isPremium(session, req)

	event := observer.AnalysisEvent{
		RequestID: requestID,
		UserID:    session.UserID,
		Premium:   premium,
	}
	log := logger.WithFields(logrus.Fields{
		"request_id":    requestID,
		"has_image":     req.HasImage(),
		"has_deck_text": req.HasDeckText(),
		"arena":         arenaField(req.Arena),
		"is_premium":    premium,
	})
	log.Info("Deck analysis requested")

	if err := s.validate(req, premium); err != nil {
		s.reject(ctx, event, err)
		return nil, err
	}

	kind := models.InputKindText
	if !req.HasDeckText() {
		kind = models.InputKindImage
	}
	event.InputKind = string(kind)
	s.publish(ctx, event, observer.AnalysisStarted)

	extraction, err := s.extract(ctx, event, req)
	if err != nil {
		return nil, s.fail(ctx, log, event, "vision", start, err)
	}

	labels := s.withCatalogMatches(extraction)
	text := prompt.Build(extraction.DetectedText, labels, req.Arena, premium)
	log.WithFields(logrus.Fields{"stage": "prompt", "labels": len(labels)}).Debug("Prompt built")

	reply, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, s.fail(ctx, log, event, "ai", start, err)
	}
	s.publish(ctx, event, observer.AICompleted)

	parsed, err := parser.Parse(reply)
	if err != nil {
		return nil, s.fail(ctx, log, event, "parse", start, err)
	}

	if kind == models.InputKindImage {
		s.archiveImage(ctx, requestID, session.UserID, req.Image)
	}
	if session.Authenticated() && premium {
		s.saveHistory(ctx, log, requestID, session.UserID, req.Arena, kind, parsed)
	}

	event.ProcessingTime = s.now().Sub(start)
	event.Metadata = map[string]interface{}{"counter_name": parsed.Result.CounterName}
	s.publish(ctx, event, observer.AnalysisCompleted)
	log.WithFields(logrus.Fields{
		"stage":       "done",
		"counter":     parsed.Result.CounterName,
		"duration_ms": event.ProcessingTime.Milliseconds(),
	}).Info("Deck analysis completed")

	return parsed, nil
}

// isPremium trusts the stored entitlement for identified callers. The request
// flag only counts when tokens are not verified at all.
func (s *deckAnalysisService) isPremium(session models.Session, req models.AnalysisRequest) bool {
	if session.Authenticated() {
		return session.Premium(s.now())
	}
	if session.Enforced {
		return false
	}
	return req.IsPremium
}

// validate runs every check that needs no external call. The premium gate
// comes before image decoding so free callers always see the upgrade prompt.
func (s *deckAnalysisService) validate(req models.AnalysisRequest, premium bool) error {
	if !req.HasImage() && !req.HasDeckText() {
		return apperrors.NewInvalidInputError(MissingInputMessage, nil)
	}
	if req.Arena != nil && !prompt.ValidArena(*req.Arena) {
		return apperrors.NewInvalidInputError(InvalidArenaMessage, nil)
	}
	if req.HasDeckText() {
		if err := s.validator.ValidateDeckText(req.DeckText); err != nil {
			return err
		}
	}
	if req.HasImage() && !premium {
		return apperrors.NewPremiumRequiredError()
	}
	if req.HasImage() && !req.HasDeckText() {
		return s.validator.ValidateImage(req.Image)
	}
	return nil
}

// extract prefers typed deck text and only reads the screenshot without it
func (s *deckAnalysisService) extract(ctx context.Context, event observer.AnalysisEvent, req models.AnalysisRequest) (*vision.Extraction, error) {
	if req.HasDeckText() {
		return &vision.Extraction{DetectedText: strings.TrimSpace(req.DeckText)}, nil
	}

	extraction, err := s.extractor.Extract(ctx, req.Image)
	if err != nil {
		return nil, err
	}
	event.Metadata = map[string]interface{}{"labels": len(extraction.Labels)}
	s.publish(ctx, event, observer.VisionExtracted)
	return extraction, nil
}

func (s *deckAnalysisService) withCatalogMatches(extraction *vision.Extraction) []string {
	labels := append([]string(nil), extraction.Labels...)
	if s.catalog == nil {
		return labels
	}

	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
	}
	for _, name := range cards.Names(s.catalog.Match(extraction.DetectedText)) {
		if !seen[name] {
			seen[name] = true
			labels = append(labels, name)
		}
	}
	return labels
}

// archiveImage runs once the reply is parsed, under its own short deadline
func (s *deckAnalysisService) archiveImage(ctx context.Context, requestID, userID, image string) {
	ctx, cancel := context.WithTimeout(ctx, s.archiveTimeout)
	defer cancel()

	name, err := s.archive.Archive(ctx, requestID, userID, image)
	if err != nil {
		logger.WithFields(logrus.Fields{"request_id": requestID}).WithError(err).Warn("Failed to archive deck image")
		return
	}
	if name != "" {
		logger.WithFields(logrus.Fields{"request_id": requestID, "blob": name}).Debug("Deck image archived")
	}
}

func (s *deckAnalysisService) saveHistory(ctx context.Context, log *logrus.Entry, id, userID string, arena *int, kind models.InputKind, parsed *parser.Parsed) {
	if s.history == nil {
		return
	}
	record := &models.AnalysisRecord{
		ID:          id,
		UserID:      userID,
		Arena:       arena,
		InputKind:   kind,
		CounterName: parsed.Result.CounterName,
		Result:      parsed.Raw,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.history.SaveAnalysis(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to save analysis history")
	}
}

func (s *deckAnalysisService) reject(ctx context.Context, event observer.AnalysisEvent, err error) {
	event.ErrorMessage = err.Error()
	s.publish(ctx, event, observer.AnalysisRejected)
}

// fail tags untyped errors as upstream failures so the boundary can map them
func (s *deckAnalysisService) fail(ctx context.Context, log *logrus.Entry, event observer.AnalysisEvent, stage string, start time.Time, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewUpstreamError(upstreamMessage(stage), err)
	}

	event.ProcessingTime = s.now().Sub(start)
	event.ErrorMessage = appErr.Error()
	event.Metadata = map[string]interface{}{"stage": stage, "error_type": appErr.Type}
	s.publish(ctx, event, observer.AnalysisFailed)

	log.WithFields(logrus.Fields{"stage": stage, "error_type": appErr.Type}).WithError(err).Error("Deck analysis stage failed")
	return appErr
}

func (s *deckAnalysisService) publish(ctx context.Context, event observer.AnalysisEvent, t observer.EventType) {
	event.EventType = t
	event.Timestamp = s.now()
	s.events.NotifyObservers(ctx, event)
}

func upstreamMessage(stage string) string {
	if stage == "vision" {
		return vision.UpstreamFailureMessage
	}
	return llm.UpstreamFailureMessage
}

func arenaField(arena *int) interface{} {
	if arena == nil {
		return nil
	}
	return *arena
}
