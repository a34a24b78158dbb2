package notifications

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/hrnotify/handler"
	"github.com/dmitrymomot/hrnotify/pkg/binder"
	"github.com/dmitrymomot/hrnotify/pkg/validator"
	notify "github.com/dmitrymomot/hrnotify/pkg/notifications"
)

// DefaultPageSize applies to list endpoints called without a limit.
const DefaultPageSize = 50

// MaxPageSize caps the limit query parameter.
const MaxPageSize = 500

// Notifier is the part of notifications.Service the admin API drives.
type Notifier interface {
	Queue(ctx context.Context, userID int64, templateName string, payload map[string]any, opts ...notify.QueueOption) (int, error)
	RegisterDevice(ctx context.Context, d notify.Device) (bool, error)
	UnregisterDevice(ctx context.Context, token string) (bool, error)
	GetPreferences(ctx context.Context, userID int64) ([]notify.Preference, error)
	SetPreference(ctx context.Context, p notify.Preference) (notify.Preference, error)
	UserNotifications(ctx context.Context, userID int64, opts notify.ListOptions) ([]notify.DeliveryLog, error)
	MarkAsRead(ctx context.Context, userID int64, ids ...uuid.UUID) error
	Inbox(ctx context.Context, userID int64, opts notify.ListOptions) ([]notify.InboxEntry, error)
	MarkInboxRead(ctx context.Context, userID int64, ids ...uuid.UUID) error
	MarkAllInboxRead(ctx context.Context, userID int64) error
	CountUnread(ctx context.Context, userID int64) (int, error)
	FailedDeliveries(ctx context.Context, opts notify.ListOptions) ([]notify.QueueItem, error)
}

var _ Notifier = (*notify.Service)(nil)

// API serves the notification admin endpoints.
type API struct {
	svc          Notifier
	errorHandler handler.ErrorHandler[handler.Context]
}

// NewAPI creates the admin API over svc. A nil errorHandler falls back to
// handler.NewErrorHandler with ClassifyError and no logging.
func NewAPI(svc Notifier, errorHandler handler.ErrorHandler[handler.Context]) *API {
	if errorHandler == nil {
		errorHandler = handler.NewErrorHandler(nil, ClassifyError)
	}
	return &API{svc: svc, errorHandler: errorHandler}
}

func (a *API) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/queue", handler.Wrap(a.enqueue,
		handler.WithBinders[handler.Context, EnqueueRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, EnqueueRequest](a.errorHandler),
	))

	r.Post("/devices", handler.Wrap(a.registerDevice,
		handler.WithBinders[handler.Context, RegisterDeviceRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, RegisterDeviceRequest](a.errorHandler),
	))
	r.Delete("/devices/{token}", handler.Wrap(a.unregisterDevice,
		handler.WithBinders[handler.Context, UnregisterDeviceRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, UnregisterDeviceRequest](a.errorHandler),
	))

	r.Route("/users/{userID}", func(u chi.Router) {
		u.Get("/preferences", handler.Wrap(a.listPreferences,
			handler.WithBinders[handler.Context, UserRequest](binder.Path(chi.URLParam)),
			handler.WithErrorHandler[handler.Context, UserRequest](a.errorHandler),
		))
		u.Put("/preferences/{type}", handler.Wrap(a.setPreference,
			handler.WithBinders[handler.Context, SetPreferenceRequest](
				binder.Path(chi.URLParam),
				binder.JSON(),
			),
			handler.WithErrorHandler[handler.Context, SetPreferenceRequest](a.errorHandler),
		))

		u.Get("/notifications", handler.Wrap(a.listNotifications,
			handler.WithBinders[handler.Context, ListRequest](
				binder.Path(chi.URLParam),
				binder.Query(),
			),
			handler.WithErrorHandler[handler.Context, ListRequest](a.errorHandler),
		))
		u.Post("/notifications/read", handler.Wrap(a.markNotificationsRead,
			handler.WithBinders[handler.Context, MarkReadRequest](
				binder.Path(chi.URLParam),
				binder.JSON(),
			),
			handler.WithErrorHandler[handler.Context, MarkReadRequest](a.errorHandler),
		))

		u.Get("/inbox", handler.Wrap(a.listInbox,
			handler.WithBinders[handler.Context, ListRequest](
				binder.Path(chi.URLParam),
				binder.Query(),
			),
			handler.WithErrorHandler[handler.Context, ListRequest](a.errorHandler),
		))
		u.Post("/inbox/read", handler.Wrap(a.markInboxRead,
			handler.WithBinders[handler.Context, MarkReadRequest](
				binder.Path(chi.URLParam),
				binder.JSON(),
			),
			handler.WithErrorHandler[handler.Context, MarkReadRequest](a.errorHandler),
		))
	})

	r.Get("/deliveries/failed", handler.Wrap(a.failedDeliveries,
		handler.WithBinders[handler.Context, ListRequest](binder.Query()),
		handler.WithErrorHandler[handler.Context, ListRequest](a.errorHandler),
	))

	return r
}

// EnqueueRequest is the body of POST /queue.
type EnqueueRequest struct {
	UserID       int64          `json:"user_id"`
	TemplateName string         `json:"template_name"`
	Payload      map[string]any `json:"payload"`
	Channel      string         `json:"channel,omitempty"`
	Priority     string         `json:"priority,omitempty"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	MaxAttempts  int            `json:"max_attempts,omitempty"`
}

func (a *API) enqueue(ctx handler.Context, req EnqueueRequest) handler.Response {
	rules := []validator.Rule{
		validator.Positive("user_id", req.UserID),
		validator.Required("template_name", req.TemplateName),
		validator.MinNum("max_attempts", req.MaxAttempts, 0),
	}

	var opts []notify.QueueOption
	if req.Channel != "" {
		ch, err := notify.ParseChannel(req.Channel)
		rules = append(rules, checkParsed("channel", err))
		opts = append(opts, notify.WithChannel(ch))
	}
	if req.Priority != "" {
		p, err := notify.ParsePriority(req.Priority)
		rules = append(rules, checkParsed("priority", err))
		opts = append(opts, notify.WithPriority(p))
	}
	if err := validator.Apply(rules...); err != nil {
		return handler.JSONError(err)
	}
	if req.ScheduledAt != nil {
		opts = append(opts, notify.WithScheduledAt(*req.ScheduledAt))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, notify.WithMaxAttempts(req.MaxAttempts))
	}

	n, err := a.svc.Queue(ctx, req.UserID, strings.TrimSpace(req.TemplateName), req.Payload, opts...)
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}

	return handler.JSON(map[string]any{"queued": n}, handler.WithJSONStatus(http.StatusAccepted))
}

// RegisterDeviceRequest is the body of POST /devices.
type RegisterDeviceRequest struct {
	UserID      int64  `json:"user_id"`
	DeviceToken string `json:"device_token"`
	DeviceType  string `json:"device_type"`
	Platform    string `json:"platform"`
	AppVersion  string `json:"app_version,omitempty"`
	OSVersion   string `json:"os_version,omitempty"`
}

func (a *API) registerDevice(ctx handler.Context, req RegisterDeviceRequest) handler.Response {
	ok, err := a.svc.RegisterDevice(ctx, notify.Device{
		UserID:     req.UserID,
		Token:      req.DeviceToken,
		DeviceType: req.DeviceType,
		Platform:   req.Platform,
		AppVersion: req.AppVersion,
		OSVersion:  req.OSVersion,
	})
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	return handler.JSON(map[string]bool{"registered": ok})
}

type UnregisterDeviceRequest struct {
	Token string `path:"token"`
}

func (a *API) unregisterDevice(ctx handler.Context, req UnregisterDeviceRequest) handler.Response {
	ok, err := a.svc.UnregisterDevice(ctx, req.Token)
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	if !ok {
		return handler.JSONError(handler.ErrNotFound.Wrap(notify.ErrDeviceNotFound))
	}
	return handler.Empty()
}

type UserRequest struct {
	UserID int64 `path:"userID"`
}

func (a *API) listPreferences(ctx handler.Context, req UserRequest) handler.Response {
	prefs, err := a.svc.GetPreferences(ctx, req.UserID)
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	if prefs == nil {
		prefs = []notify.Preference{}
	}
	return handler.JSON(prefs)
}

// SetPreferenceRequest is the body of PUT /users/{userID}/preferences/{type}.
type SetPreferenceRequest struct {
	UserID           int64    `json:"-" path:"userID"`
	NotificationType string   `json:"-" path:"type"`
	Channels         []string `json:"channels"`
	Enabled          *bool    `json:"enabled"`
}

func (a *API) setPreference(ctx handler.Context, req SetPreferenceRequest) handler.Response {
	rules := []validator.Rule{
		validator.Check("enabled", req.Enabled != nil, "field is required"),
	}
	channels := make([]notify.Channel, 0, len(req.Channels))
	for _, c := range req.Channels {
		ch, err := notify.ParseChannel(c)
		rules = append(rules, checkParsed("channels", err))
		if err == nil {
			channels = append(channels, ch)
		}
	}
	if err := validator.Apply(rules...); err != nil {
		return handler.JSONError(err)
	}

	pref, err := a.svc.SetPreference(ctx, notify.Preference{
		UserID:           req.UserID,
		NotificationType: req.NotificationType,
		Channels:         channels,
		Enabled:          *req.Enabled,
	})
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	return handler.JSON(pref)
}

// ListRequest carries the user path parameter and the list filters.
type ListRequest struct {
	UserID     int64      `path:"userID"`
	Limit      int        `query:"limit"`
	Offset     int        `query:"offset"`
	OnlyUnread bool       `query:"only_unread"`
	Types      []string   `query:"types"`
	Since      *time.Time `query:"since"`
}

func (r ListRequest) options() (notify.ListOptions, error) {
	if err := validator.Apply(
		validator.MinNum("limit", r.Limit, 0),
		validator.MinNum("offset", r.Offset, 0),
	); err != nil {
		return notify.ListOptions{}, err
	}

	limit := r.Limit
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return notify.ListOptions{
		Limit:      limit,
		Offset:     r.Offset,
		OnlyUnread: r.OnlyUnread,
		Types:      r.Types,
		Since:      r.Since,
	}, nil
}

func pageMeta(opts notify.ListOptions, n int) map[string]any {
	return map[string]any{
		"limit":  opts.Limit,
		"offset": opts.Offset,
		"count":  n,
	}
}

func (a *API) listNotifications(ctx handler.Context, req ListRequest) handler.Response {
	opts, err := req.options()
	if err != nil {
		return handler.JSONError(err)
	}
	logs, err := a.svc.UserNotifications(ctx, req.UserID, opts)
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	if logs == nil {
		logs = []notify.DeliveryLog{}
	}
	return handler.JSON(logs, handler.WithJSONMeta(pageMeta(opts, len(logs))))
}

func (a *API) listInbox(ctx handler.Context, req ListRequest) handler.Response {
	opts, err := req.options()
	if err != nil {
		return handler.JSONError(err)
	}
	entries, err := a.svc.Inbox(ctx, req.UserID, opts)
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	unread, err := a.svc.CountUnread(ctx, req.UserID)
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	if entries == nil {
		entries = []notify.InboxEntry{}
	}

	meta := pageMeta(opts, len(entries))
	meta["unread"] = unread
	return handler.JSON(entries, handler.WithJSONMeta(meta))
}

// MarkReadRequest is the body of the read endpoints. With All set every
// unread inbox entry is marked; IDs are ignored.
type MarkReadRequest struct {
	UserID int64       `json:"-" path:"userID"`
	IDs    []uuid.UUID `json:"ids"`
	All    bool        `json:"all,omitempty"`
}

func (r MarkReadRequest) validate(allowAll bool) error {
	rules := []validator.Rule{
		validator.Positive("user_id", r.UserID),
		validator.Check("all", !r.All || allowAll, "is not supported for this resource"),
	}
	if !r.All {
		rules = append(rules,
			validator.RequiredSlice("ids", r.IDs),
			validator.NonNilUUIDs("ids", r.IDs),
		)
	}
	return validator.Apply(rules...)
}

// checkParsed turns a parse failure into a field rule carrying its message.
func checkParsed(field string, err error) validator.Rule {
	if err != nil {
		return validator.Check(field, false, err.Error())
	}
	return validator.Check(field, true, "")
}

func (a *API) markNotificationsRead(ctx handler.Context, req MarkReadRequest) handler.Response {
	if err := req.validate(false); err != nil {
		return handler.JSONError(err)
	}
	if err := a.svc.MarkAsRead(ctx, req.UserID, req.IDs...); err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	return handler.Empty()
}

func (a *API) markInboxRead(ctx handler.Context, req MarkReadRequest) handler.Response {
	if err := req.validate(true); err != nil {
		return handler.JSONError(err)
	}

	var err error
	if req.All {
		err = a.svc.MarkAllInboxRead(ctx, req.UserID)
	} else {
		err = a.svc.MarkInboxRead(ctx, req.UserID, req.IDs...)
	}
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	return handler.Empty()
}

func (a *API) failedDeliveries(ctx handler.Context, req ListRequest) handler.Response {
	opts, err := req.options()
	if err != nil {
		return handler.JSONError(err)
	}
	items, err := a.svc.FailedDeliveries(ctx, opts)
	if err != nil {
		return handler.JSONError(ClassifyError(err))
	}
	if items == nil {
		items = []notify.QueueItem{}
	}
	return handler.JSON(items, handler.WithJSONMeta(pageMeta(opts, len(items))))
}
