package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go-sniper/aggregator"
	"go-sniper/builder"
	"go-sniper/models"
	"go-sniper/notify"
	"go-sniper/plugin"
)

const (
	launchTimeout = 30 * time.Second
	notifyTimeout = 2 * time.Minute

	exportFilename = "sniper-results.json"
)

// Repository persists what the aggregator store does not own.
type Repository interface {
	SaveInvocation(resultID string, d models.InvocationDescriptor) error
	Invocations(resultID string) ([]models.InvocationDescriptor, error)
	FetchSettings() (models.Settings, error)
	UpdateSettings(s models.Settings) error
}

// Handler defines an HTTP handler.
type Handler struct {
	store   *aggregator.Store
	builder *builder.Builder
	pm      *plugin.Manager // pm defines the *plugin.Manager used in operations.
	db      Repository
	plugin  string

	// notify is called in its own goroutine after a terminal transition.
	notify func(models.ScanResult)
	now    func() time.Time
}

// ModesHandler defines the handler for the /modes endpoint.
func (h *Handler) ModesHandler(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(builder.Modes())
}

// PreviewHandler defines the handler for the /scans/preview endpoint.
func (h *Handler) PreviewHandler(ctx fiber.Ctx) error {
	var data models.ScanConfig
	if err := ctx.Bind().Body(&data); err != nil {
		return badBody(ctx)
	}

	v, d, err := h.builder.Preview(data)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(PreviewResponse{
		CommandResponse: commandResponse(d),
		Config:          v.Config(),
	})
}

// ScanHandler defines the handler for the /scans endpoint. It registers a
// running result and hands the rendered command to the launcher plugin.
func (h *Handler) ScanHandler(ctx fiber.Ctx) error {
	var data models.ScanConfig
	if err := ctx.Bind().Body(&data); err != nil {
		return badBody(ctx)
	}

	v, d, err := h.builder.Preview(data)
	if err != nil {
		return h.fail(ctx, err)
	}
	cfg := v.Config()

	workspace := cfg.Workspace
	if workspace == "" {
		workspace = DefaultWorkspace
	}
	result := models.ScanResult{
		ID:              uuid.NewString(),
		Target:          cfg.Target,
		Mode:            cfg.Mode,
		Workspace:       workspace,
		Status:          models.StatusRunning,
		StartTime:       h.now().UTC(),
		Vulnerabilities: []models.Vulnerability{},
		Ports:           []models.Port{},
		Domains:         []string{},
	}
	if _, err := h.store.Ingest(result); err != nil {
		return h.fail(ctx, err)
	}
	if err := h.db.SaveInvocation(result.ID, d); err != nil {
		// Never launched, so it must not count as a running scan.
		if _, rerr := h.store.Remove(result.ID); rerr != nil {
			logrus.Errorf("couldn't drop unlaunched result %s: %v", result.ID, rerr)
		}
		return h.fail(ctx, err)
	}
	logrus.Infof("Rendered command for result %s: %s", result.ID, d)

	launchCtx, cancel := context.WithTimeout(context.Background(), launchTimeout)
	defer cancel()
	if err := h.pm.Launch(launchCtx, h.plugin, result.ID, d); err != nil {
		logrus.Errorf("Launch of result %s failed: %v", result.ID, err)
		failed, terr := h.store.Transition(result.ID, models.StatusFailed, timePtr(h.now()))
		if terr != nil {
			logrus.Errorf("couldn't mark result %s as failed: %v", result.ID, terr)
		} else if h.notify != nil {
			go h.notify(failed)
		}
		return ctx.Status(fiber.StatusBadGateway).JSON(response{
			Error:   true,
			Message: "The scan could not be launched.",
			Code:    "LaunchFailed",
		})
	}

	return ctx.Status(fiber.StatusCreated).JSON(LaunchResponse{
		CommandResponse: commandResponse(d),
		Result:          result,
	})
}

// IngestHandler defines the handler for POST /results.
func (h *Handler) IngestHandler(ctx fiber.Ctx) error {
	var data models.ScanResult
	if err := ctx.Bind().Body(&data); err != nil {
		return badBody(ctx)
	}

	ws, err := h.store.Ingest(data)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(ws)
}

// UpdateHandler defines the handler for PUT /results/:id.
func (h *Handler) UpdateHandler(ctx fiber.Ctx) error {
	var data models.ScanResult
	if err := ctx.Bind().Body(&data); err != nil {
		return badBody(ctx)
	}
	if data.ID == "" {
		data.ID = ctx.Params("id")
	}
	if data.ID != ctx.Params("id") {
		return h.fail(ctx, models.ErrInvalidField.OnField("id").With("body id does not match the path"))
	}

	ws, err := h.store.Update(data)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(ws)
}

// TransitionHandler defines the handler for POST /results/:id/transition.
func (h *Handler) TransitionHandler(ctx fiber.Ctx) error {
	var data TransitionRequest
	if err := ctx.Bind().Body(&data); err != nil {
		return badBody(ctx)
	}

	result, err := h.store.Transition(ctx.Params("id"), data.Status, data.EndTime)
	if err != nil {
		return h.fail(ctx, err)
	}
	if h.notify != nil {
		go h.notify(result)
	}
	return ctx.Status(fiber.StatusOK).JSON(result)
}

// ResultsHandler defines the handler for GET /results. With ?format=json
// the listing is served as a file download.
func (h *Handler) ResultsHandler(ctx fiber.Ctx) error {
	preds := []aggregator.Predicate{aggregator.MatchText(ctx.Query("q"))}
	if ws := ctx.Query("workspace"); ws != "" {
		preds = append(preds, aggregator.InWorkspace(ws))
	}
	if status := normalizeQuery(ctx.Query("status")); status != "" {
		preds = append(preds, aggregator.WithStatus(models.ScanStatus(status)))
	}
	if mode := normalizeQuery(ctx.Query("mode")); mode != "" {
		preds = append(preds, aggregator.WithMode(models.ScanMode(mode)))
	}

	results := make([]models.ScanResult, 0)
	for r := range h.store.Query(aggregator.All(preds...)) {
		results = append(results, r)
	}

	switch ctx.Query("format") {
	case "":
	case "json":
		ctx.Attachment(exportFilename)
	default:
		return h.fail(ctx, models.ErrInvalidField.OnField("format").With("unknown export format %q", ctx.Query("format")))
	}
	return ctx.Status(fiber.StatusOK).JSON(ResultsResponse{Results: results})
}

// ResultHandler defines the handler for GET /results/:id.
func (h *Handler) ResultHandler(ctx fiber.Ctx) error {
	r, err := h.store.Result(ctx.Params("id"))
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(ResultResponse{
		ScanResult: r,
		Severities: r.SeverityCounts(),
	})
}

// InvocationsHandler defines the handler for GET /results/:id/invocations.
func (h *Handler) InvocationsHandler(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	if _, err := h.store.Result(id); err != nil {
		return h.fail(ctx, err)
	}

	invocations, err := h.db.Invocations(id)
	if err != nil {
		return h.fail(ctx, err)
	}
	out := make([]CommandResponse, 0, len(invocations))
	for _, d := range invocations {
		out = append(out, commandResponse(d))
	}
	return ctx.Status(fiber.StatusOK).JSON(out)
}

// RemoveResultHandler defines the handler for DELETE /results/:id.
func (h *Handler) RemoveResultHandler(ctx fiber.Ctx) error {
	ws, err := h.store.Remove(ctx.Params("id"))
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(ws)
}

// WorkspacesHandler defines the handler for GET /workspaces.
func (h *Handler) WorkspacesHandler(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(WorkspacesResponse{
		Workspaces: h.store.Workspaces(ctx.Query("q")),
	})
}

// CreateWorkspaceHandler defines the handler for POST /workspaces.
func (h *Handler) CreateWorkspaceHandler(ctx fiber.Ctx) error {
	var data WorkspaceRequest
	if err := ctx.Bind().Body(&data); err != nil {
		return badBody(ctx)
	}

	ws, err := h.store.CreateWorkspace(data.Name, data.Description)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(ws)
}

// WorkspaceHandler defines the handler for GET /workspaces/:name.
func (h *Handler) WorkspaceHandler(ctx fiber.Ctx) error {
	ws, err := h.store.Workspace(ctx.Params("name"))
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(ws)
}

// DeleteWorkspaceHandler defines the handler for DELETE /workspaces/:name.
// Without confirm=true it only answers with the confirmation prompt.
func (h *Handler) DeleteWorkspaceHandler(ctx fiber.Ctx) error {
	name := ctx.Params("name")

	if ctx.Query("confirm") != "true" {
		prompt, err := h.store.DeletionPrompt(name)
		if err != nil {
			return h.fail(ctx, err)
		}
		return ctx.Status(fiber.StatusConflict).JSON(prompt)
	}

	removed, err := h.store.DeleteWorkspace(name)
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(WorkspaceDeleted{Name: name, RemovedResults: removed})
}

// StatsHandler defines the handler for /stats endpoint.
func (h *Handler) StatsHandler(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(h.store.Stats())
}

// FetchSettingsHandler defines the handler for GET /settings.
func (h *Handler) FetchSettingsHandler(ctx fiber.Ctx) error {
	s, err := h.db.FetchSettings()
	if err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(s)
}

// SettingsHandler defines the handler for POST /settings.
func (h *Handler) SettingsHandler(ctx fiber.Ctx) error {
	var data models.Settings
	if err := ctx.Bind().Body(&data); err != nil {
		return badBody(ctx)
	}

	if err := h.db.UpdateSettings(data); err != nil {
		return h.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(data)
}

// EnabledPluginsHandler defines the handler for /plugins endpoint.
func (h *Handler) EnabledPluginsHandler(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(EnabledPlugins{
		Plugins: h.pm.Count(),
		Names:   h.pm.Names(),
	})
}

// notifySlack sends the finished result to Slack when the saved
// settings enable it.
func (h *Handler) notifySlack(r models.ScanResult) {
	settings, err := h.db.FetchSettings()
	if err != nil {
		logrus.Errorf("couldn't fetch settings for notification: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := notify.NewSlack(settings).NotifyScanWithRetry(ctx, r); err != nil {
		logrus.Errorf("Slack notification for result %s failed: %v", r.ID, err)
	}
}

// fail maps err onto the response envelope.
func (h *Handler) fail(ctx fiber.Ctx, err error) error {
	var de *models.Error
	if !errors.As(err, &de) {
		logrus.Errorf("%s %s failed: %v", ctx.Method(), ctx.Path(), err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(response{
			Error:   true,
			Message: "Unexpected internal error occurred.",
		})
	}

	if de.Kind == models.KindState {
		logrus.Warnf("%s %s rejected: %v", ctx.Method(), ctx.Path(), de)
	}
	return ctx.Status(statusFor(de.Kind)).JSON(response{
		Error:   true,
		Message: de.Message,
		Code:    de.Code,
		Field:   de.Field,
	})
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return fiber.StatusUnprocessableEntity
	case models.KindState:
		return fiber.StatusConflict
	case models.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func badBody(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnprocessableEntity).JSON(response{
		Error:   true,
		Message: "Invalid data provided.",
		Code:    "InvalidBody",
	})
}

func timePtr(t time.Time) *time.Time { return &t }

// normalizeQuery folds an enum query value the way stored values are folded.
func normalizeQuery(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
