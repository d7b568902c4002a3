package checkup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/company"
	"github.com/sells-group/interview-checkup/internal/store"
	"github.com/sells-group/interview-checkup/internal/validation"
)

// aggregateTimeout bounds the detached company resolution and fold.
const aggregateTimeout = 30 * time.Second

// Request is one submitted checkup.
type Request struct {
	CompanyName       string                 `json:"companyName" validate:"max=200"`
	CompanyID         string                 `json:"companyId" validate:"max=128"`
	MarkedFlags       []string               `json:"markedFlags" validate:"max=50,dive,required,max=128"`
	TotalFlags        int                    `json:"totalFlags" validate:"gte=0,lte=50"`
	SeverityBreakdown company.SeverityCounts `json:"severityBreakdown"`
}

// Meta carries request context that is stored but never trusted.
type Meta struct {
	UserAgent string
	ClientIP  string
}

// Response is returned to the submitting client.
type Response struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submissionId,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Submission is the stored form of a checkup.
type Submission struct {
	ID                string                 `json:"id"`
	CompanyName       *string                `json:"companyName"`
	CompanyID         string                 `json:"companyId,omitempty"`
	MarkedFlags       []string               `json:"markedFlags"`
	TotalFlags        int                    `json:"totalFlags"`
	SeverityBreakdown company.SeverityCounts `json:"severityBreakdown"`
	UserAgent         string                 `json:"userAgent"`
	IPHash            string                 `json:"ipHash"`
	SessionID         string                 `json:"sessionId"`
	Timestamp         time.Time              `json:"timestamp"`
}

// Resolver finds or creates the company a checkup names.
type Resolver interface {
	FindOrCreate(ctx context.Context, name string) (company.Company, error)
}

// Aggregator folds a checkup into company statistics.
type Aggregator interface {
	ApplySubmission(ctx context.Context, companyID string, sub company.Submission)
}

// UsageRecorder counts how often a flag is marked.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, flagID string)
}

// Service records submissions and feeds company statistics.
type Service struct {
	store      store.Store
	collection string
	resolver   Resolver
	aggregator Aggregator
	usage      UsageRecorder
	validator  *validation.Validator
	now        func() time.Time

	wg sync.WaitGroup
}

// NewService creates the intake service. usage may be nil.
func NewService(st store.Store, collection string, resolver Resolver, aggregator Aggregator, usage UsageRecorder) *Service {
	return &Service{
		store:      st,
		collection: collection,
		resolver:   resolver,
		aggregator: aggregator,
		usage:      usage,
		validator:  validation.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a checkup, then folds it into the named
// company in the background. Validation failures return an error matching
// validation.ErrInvalid. A store failure returns a Response with Success
// false and an error matching store.ErrStoreUnavailable. Company resolution
// and aggregation never affect the result.
func (s *Service) Submit(ctx context.Context, req Request, meta Meta) (Response, error) {
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.CompanyID = strings.TrimSpace(req.CompanyID)
	if err := s.validator.Validate(req); err != nil {
		return Response{Success: false, Error: err.Error()}, err
	}
	if req.MarkedFlags == nil {
		req.MarkedFlags = []string{}
	}

	sub := Submission{
		CompanyID:         req.CompanyID,
		MarkedFlags:       req.MarkedFlags,
		TotalFlags:        req.TotalFlags,
		SeverityBreakdown: req.SeverityBreakdown,
		UserAgent:         orUnknown(meta.UserAgent),
		IPHash:            HashIP(orUnknown(meta.ClientIP)),
		SessionID:         uuid.NewString(),
		Timestamp:         s.now(),
	}
	if req.CompanyName != "" {
		sub.CompanyName = &req.CompanyName
	}

	id, err := s.store.Insert(ctx, s.collection, submissionFields(sub))
	if err != nil {
		zap.L().Error("checkup: store submission failed", zap.Error(err))
		if !errors.Is(err, store.ErrStoreUnavailable) {
			err = eris.Wrapf(store.ErrStoreUnavailable, "checkup: store submission: %v", err)
		}
		return Response{Success: false, Error: "failed to submit interview checkup"}, err
	}
	sub.ID = id

	zap.L().Info("checkup: submission stored",
		zap.String("submission_id", id),
		zap.Int("marked", len(sub.MarkedFlags)),
		zap.Bool("has_company", req.CompanyName != "" || req.CompanyID != ""),
	)

	s.recordUsage(ctx, sub.MarkedFlags)
	s.aggregate(ctx, req)

	return Response{Success: true, SubmissionID: id, SessionID: sub.SessionID}, nil
}

func (s *Service) recordUsage(ctx context.Context, flags []string) {
	if s.usage == nil {
		return
	}
	seen := make(map[string]bool, len(flags))
	for _, id := range flags {
		if !seen[id] {
			seen[id] = true
			s.usage.IncrementUsage(ctx, id)
		}
	}
}

// aggregate resolves the company and applies the submission detached from
// the request.
func (s *Service) aggregate(ctx context.Context, req Request) {
	if req.CompanyID == "" && req.CompanyName == "" {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(detached, aggregateTimeout)
		defer cancel()

		companyID := req.CompanyID
		if companyID == "" {
			co, err := s.resolver.FindOrCreate(ctx, req.CompanyName)
			if err != nil {
				zap.L().Warn("checkup: company resolution skipped",
					zap.String("company_name", req.CompanyName),
					zap.Error(err),
				)
				return
			}
			companyID = co.ID
		}

		s.aggregator.ApplySubmission(ctx, companyID, company.Submission{
			MarkedFlags: req.MarkedFlags,
			Severity:    req.SeverityBreakdown,
		})
	}()
}

// Wait blocks until background aggregation finishes.
func (s *Service) Wait() {
	s.wg.Wait()
}

// HashIP returns the hex SHA-256 of an address.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}

func submissionFields(sub Submission) store.Fields {
	fields := store.Fields{
		"companyName":       sub.CompanyName,
		"markedFlags":       sub.MarkedFlags,
		"totalFlags":        sub.TotalFlags,
		"severityBreakdown": sub.SeverityBreakdown,
		"userAgent":         sub.UserAgent,
		"ipHash":            sub.IPHash,
		"sessionId":         sub.SessionID,
		"timestamp":         sub.Timestamp,
	}
	if sub.CompanyID != "" {
		fields["companyId"] = sub.CompanyID
	}
	return fields
}

// BySession returns the stored submissions of one session.
func (s *Service) BySession(ctx context.Context, sessionID string) ([]Submission, error) {
	docs, err := s.store.QueryWhere(ctx, s.collection, "sessionId", sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "checkup: query session")
	}
	out := make([]Submission, 0, len(docs))
	for _, doc := range docs {
		var sub Submission
		if err := doc.Decode(&sub); err != nil {
			zap.L().Warn("checkup: skipping malformed submission", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		sub.ID = doc.ID
		out = append(out, sub)
	}
	return out, nil
}
