package server

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/otherjamesbrown/minutes/pkg/access"
	"github.com/otherjamesbrown/minutes/pkg/analysis"
	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
	"github.com/otherjamesbrown/minutes/pkg/intake"
	"github.com/otherjamesbrown/minutes/pkg/logging"
	"github.com/otherjamesbrown/minutes/pkg/observability"
	"github.com/otherjamesbrown/minutes/pkg/transcription"
)

// UnlimitedTranscriptions is reported to privileged transcribe callers.
const UnlimitedTranscriptions = "unlimited"

const multipartMemory = 8 << 20

type analyzeRequest struct {
	Transcript interface{} `json:"transcript"`
	// MeetingText is the legacy name for Transcript.
	MeetingText interface{} `json:"meetingText"`
	SessionID   interface{} `json:"sessionId"`
	Password    interface{} `json:"password"`
}

// credentials reads the JSON credential fields. null, false, 0 and "" count
// as absent. A non-string password never matches; a non-string session id
// is keyed by its JSON text.
func (req analyzeRequest) credentials() access.Credentials {
	var creds access.Credentials
	if s, ok := req.Password.(string); ok {
		creds.Password = s
	} else if present(req.Password) {
		creds.MalformedPassword = true
	}
	if s, ok := req.SessionID.(string); ok {
		creds.SessionID = s
	} else if present(req.SessionID) {
		b, _ := json.Marshal(req.SessionID)
		creds.SessionID = string(b)
	}
	return creds
}

func present(v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return true
	}
}

type analyzeResponse struct {
	analysis.Result
	RemainingUses int  `json:"remainingUses"`
	IsAdmin       bool `json:"isAdmin"`
}

type transcribeResponse struct {
	Text string `json:"text"`
	// RemainingTranscriptions is a count, or "unlimited".
	RemainingTranscriptions interface{} `json:"remainingTranscriptions"`
	IsAdmin                 bool        `json:"isAdmin"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger.WithContext(ctx)

	var req analyzeRequest
	body := http.MaxBytesReader(w, r.Body, s.config.MaxJSONBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		log.Debug("invalid analyze body", logging.Err(err))
		writeError(w, mnerrors.BadRequest("Invalid JSON body"))
		return
	}

	grant, err := s.authorize(r, s.deps.AnalyzeGate, observability.OperationAnalyze,
		req.credentials())
	if err != nil {
		writeError(w, err)
		return
	}
	ctx = observability.ContextWithPrivileged(ctx, grant.Privileged)

	transcript, err := intake.ValidateTranscript(intake.SelectTranscript(req.Transcript, req.MeetingText))
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.deps.Analyzer.Analyze(ctx, transcript)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Result:        result,
		RemainingUses: grant.Remaining,
		IsAdmin:       grant.Privileged,
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger.WithContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, mnerrors.BadRequestf("File too large. Maximum size is %dMB.", s.config.MaxAudioBytes/1024/1024))
			return
		}
		log.Debug("invalid transcribe body", logging.Err(err))
		writeError(w, mnerrors.BadRequest("Invalid multipart form"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove multipart temp files", logging.Err(err))
		}
	}()

	grant, err := s.authorize(r, s.deps.TranscribeGate, observability.OperationTranscribe,
		access.Credentials{Password: r.PostFormValue("password"), SessionID: r.PostFormValue("sessionId")})
	if err != nil {
		writeError(w, err)
		return
	}
	ctx = observability.ContextWithPrivileged(ctx, grant.Privileged)

	file, header, err := r.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		writeError(w, mnerrors.BadRequest("No audio file provided"))
		return
	}
	var upload *intake.Upload
	if file != nil {
		defer file.Close()
		upload = uploadFrom(header)
	}
	if err := s.validator.Validate(upload); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.deps.Transcriber.Transcribe(ctx, transcription.Audio{
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := transcribeResponse{Text: result.Text, IsAdmin: grant.Privileged}
	if grant.Privileged {
		resp.RemainingTranscriptions = UnlimitedTranscriptions
	} else {
		resp.RemainingTranscriptions = grant.Remaining
	}
	writeJSON(w, http.StatusOK, resp)
}

func uploadFrom(h *multipart.FileHeader) *intake.Upload {
	return &intake.Upload{
		Filename:    h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Size:        h.Size,
	}
}

// authorize runs the gate and records the outcome.
func (s *Server) authorize(r *http.Request, gate Authorizer, operation string, creds access.Credentials) (access.Grant, error) {
	grant, err := gate.Authorize(r.Context(), creds)
	switch {
	case err == nil && grant.Privileged:
		s.deps.Metrics.RecordAccess(operation, observability.AccessPrivileged)
	case err == nil:
		s.deps.Metrics.RecordAccess(operation, observability.AccessDemo)
	case mnerrors.IsRateLimited(err):
		s.deps.Metrics.RecordAccess(operation, observability.AccessRateLimited)
	case mnerrors.IsUnauthorized(err):
		s.deps.Metrics.RecordAccess(operation, observability.AccessUnauthorized)
	default:
		s.deps.Metrics.RecordAccess(operation, observability.AccessError)
	}
	return grant, err
}
