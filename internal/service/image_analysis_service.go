package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/neuravision/neuravision/internal/analyzer"
	apperrors "github.com/neuravision/neuravision/internal/errors"
	"github.com/neuravision/neuravision/internal/repository"
	"github.com/neuravision/neuravision/internal/session"
	"github.com/neuravision/neuravision/internal/strategy"
	"github.com/neuravision/neuravision/pkg/models"
	"github.com/neuravision/neuravision/pkg/validation"
)

// AnalyzeInput is an uploaded image plus what the user typed
type AnalyzeInput struct {
	Image      []byte
	Filename   string
	Prompt     string
	Preset     string
	Credential string
	SessionID  string
}

// RemoteInput names an image in remote storage plus what the user typed
type RemoteInput struct {
	Ref        repository.ImageRef
	Prompt     string
	Preset     string
	Credential string
	SessionID  string
}

// ImageAnalysisService runs analyses on behalf of API and CLI callers
type ImageAnalysisService interface {
	// AnalyzeUpload analyzes image bytes sent by the caller
	AnalyzeUpload(ctx context.Context, input AnalyzeInput) (*models.AnalysisResponse, error)

	// AnalyzeRemote fetches an image from storage and analyzes it
	AnalyzeRemote(ctx context.Context, input RemoteInput) (*models.AnalysisResponse, error)

	// Presets lists the quick scan prompts
	Presets() []models.Preset
}

// imageAnalysisService implements ImageAnalysisService. A returned error means
// the request was rejected before analysis; analysis failures are reported in
// the response.
type imageAnalysisService struct {
	analyzer      analyzer.ImageAnalyzer
	imageRepo     repository.ImageRepository
	sessions      *session.Store
	presets       *strategy.Registry
	validator     *validation.ImageValidator
	defaultPrompt string
}

// NewImageAnalysisService creates a new image analysis service
func NewImageAnalysisService(
	imageAnalyzer analyzer.ImageAnalyzer,
	imageRepository repository.ImageRepository,
	sessions *session.Store,
	presets *strategy.Registry,
	validator *validation.ImageValidator,
	defaultPrompt string,
) ImageAnalysisService {
	if presets == nil {
		presets = strategy.DefaultRegistry()
	}
	if validator == nil {
		validator = validation.NewImageValidator()
	}
	return &imageAnalysisService{
		analyzer:      imageAnalyzer,
		imageRepo:     imageRepository,
		sessions:      sessions,
		presets:       presets,
		validator:     validator,
		defaultPrompt: defaultPrompt,
	}
}

// AnalyzeUpload validates the upload and runs the pipeline on it
func (s *imageAnalysisService) AnalyzeUpload(ctx context.Context, input AnalyzeInput) (*models.AnalysisResponse, error) {
	if len(input.Image) == 0 {
		return nil, apperrors.NewValidationError(validation.NoImageMessage, nil)
	}
	if input.Filename != "" {
		if err := s.validator.ValidateFilename(input.Filename); err != nil {
			return nil, err
		}
	}

	req, err := s.resolve(input.SessionID, input.Credential, input.Prompt, input.Preset)
	if err != nil {
		return nil, err
	}

	if req.hasCredential() {
		if _, err := s.validator.ValidateImage(input.Image); err != nil {
			return nil, err
		}
	}

	result := s.analyzer.AnalyzeBytes(ctx, req.credential, input.Image, req.prompt)
	return s.finish(req, result, ""), nil
}

// AnalyzeRemote loads the referenced image and runs the pipeline on it. Without
// a credential nothing is fetched.
func (s *imageAnalysisService) AnalyzeRemote(ctx context.Context, input RemoteInput) (*models.AnalysisResponse, error) {
	if strings.TrimSpace(input.Ref.Location) == "" {
		return nil, apperrors.NewValidationError(validation.NoImageMessage, nil)
	}

	req, err := s.resolve(input.SessionID, input.Credential, input.Prompt, input.Preset)
	if err != nil {
		return nil, err
	}

	var data []byte
	if req.hasCredential() {
		data, err = s.imageRepo.Load(ctx, input.Ref)
		if err != nil {
			return nil, err
		}
		if _, err := s.validator.ValidateImage(data); err != nil {
			return nil, err
		}
	}

	result := s.analyzer.AnalyzeBytes(ctx, req.credential, data, req.prompt)
	return s.finish(req, result, string(input.Ref.Source)), nil
}

// Presets lists the quick scan prompts in display order
func (s *imageAnalysisService) Presets() []models.Preset {
	list := s.presets.List()
	out := make([]models.Preset, 0, len(list))
	for _, p := range list {
		out = append(out, models.Preset{Name: p.Name(), Label: p.Label(), Prompt: p.Prompt()})
	}
	return out
}

// analysisRequest is the credential and prompt an analysis runs with
type analysisRequest struct {
	sessionID   string
	credential  string
	explicitKey bool
	prompt      string
	typedPrompt bool
	preset      string
}

func (r analysisRequest) hasCredential() bool {
	return strings.TrimSpace(r.credential) != ""
}

// resolve picks the credential (explicit, then session) and the prompt
// (explicit, preset, session prompt, session preset, default)
func (s *imageAnalysisService) resolve(sessionID, credential, prompt, preset string) (analysisRequest, error) {
	req := analysisRequest{
		sessionID:   sessionID,
		credential:  strings.TrimSpace(credential),
		explicitKey: strings.TrimSpace(credential) != "",
	}

	var sess session.Session
	if sessionID != "" {
		if s.sessions == nil {
			return req, apperrors.NewNotFoundError("Session not found", session.ErrNotFound)
		}
		found, err := s.sessions.Get(sessionID)
		if err != nil {
			return req, apperrors.NewNotFoundError("Session not found", err)
		}
		sess = found
	}

	if !req.explicitKey {
		req.credential = sess.Credential
	}

	switch {
	case strings.TrimSpace(prompt) != "":
		req.prompt = prompt
		req.typedPrompt = true
	case preset != "":
		p, ok := s.presets.Lookup(preset)
		if !ok {
			return req, apperrors.NewValidationError("Unknown preset: "+preset, nil)
		}
		req.prompt = p.Prompt()
		req.preset = p.Name()
	case sess.Prompt != "":
		req.prompt = sess.Prompt
	case sess.Preset != "":
		if p, ok := s.presets.Lookup(sess.Preset); ok {
			req.prompt = p.Prompt()
			req.preset = p.Name()
			break
		}
		req.prompt = s.defaultPrompt
	default:
		req.prompt = s.defaultPrompt
	}

	return req, nil
}

// finish converts the pipeline result and records it in the session
func (s *imageAnalysisService) finish(req analysisRequest, result analyzer.Result, source string) *models.AnalysisResponse {
	now := time.Now()
	resp := &models.AnalysisResponse{
		State:            result.State.String(),
		Result:           result.Message,
		Text:             result.Text,
		ErrorType:        result.ErrorType(),
		Model:            result.Model,
		Prompt:           req.prompt,
		Source:           source,
		SessionID:        req.sessionID,
		ProcessingTimeMs: result.Duration.Milliseconds(),
		Timestamp:        now,
		StatusCode:       http.StatusOK,
	}
	if result.Usage != nil {
		resp.Usage = &models.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	if result.Err != nil {
		resp.StatusCode = result.Err.StatusCode
	}

	if req.sessionID != "" && s.sessions != nil {
		_, err := s.sessions.Update(req.sessionID, func(sess *session.Session) {
			// A session keeps either a typed prompt or a preset, whichever was chosen last.
			switch {
			case req.typedPrompt:
				sess.Prompt = req.prompt
				sess.Preset = ""
			case req.preset != "":
				sess.Prompt = ""
				sess.Preset = req.preset
			}
			if req.explicitKey {
				sess.Credential = req.credential
			}
			sess.LastResult = &session.Outcome{
				State:       resp.State,
				Message:     resp.Result,
				ErrorType:   resp.ErrorType,
				Model:       resp.Model,
				CompletedAt: now,
			}
		})
		// The session may expire while the model is answering; the result is still returned.
		if err != nil {
			resp.SessionID = ""
		}
	}
	return resp
}
