package ui

import (
	"time"

	"github.com/abelbrown/staffproof/internal/controller"
	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/otel"
)

// Config describes how screens reach the API.
type Config struct {
	Client        *fetch.Client
	PageSize      int
	Debounce      time.Duration
	Retry         controller.Retry
	Events        *otel.Logger
	MutateTimeout time.Duration
}

type record[T any] interface {
	domain.Record
	WithKey(key string) T
}

// Screens builds one screen per collection, in tab order.
func Screens(cfg Config) []Screen {
	return []Screen{
		bind(cfg, domain.Notifications, previewNotification),
		bind[domain.VerificationCase](cfg, domain.Cases, previewCase),
		bind[domain.Verifier](cfg, domain.Verifiers, nil),
		bind[domain.Employee](cfg, domain.Employees, nil),
		bind[domain.Employer](cfg, domain.Employers, nil),
		bind[domain.BlacklistEntry](cfg, domain.Blacklist, nil),
		bind[domain.BillingRecord](cfg, domain.Billing, nil),
	}
}

func bind[T record[T]](cfg Config, name string, preview func(T, string) T) Screen {
	desc, ok := domain.Lookup(name)
	if !ok {
		panic("ui: unknown collection " + name)
	}
	res := fetch.NewResource[T](cfg.Client, name)
	ident := domain.IdentityOf[T]()
	opts := controller.Options[T]{
		Resource: name,
		PageSize: cfg.PageSize,
		Debounce: cfg.Debounce,
		Retry:    cfg.Retry,
		Events:   cfg.Events,
	}
	if !desc.ReadOnly {
		opts.Backend = res
		opts.Identity = ident
	}
	return NewScreen(desc, controller.New[T](res, opts), ident, ScreenOptions[T]{
		Preview:       preview,
		MutateTimeout: cfg.MutateTimeout,
	})
}

func previewNotification(n domain.Notification, action string) domain.Notification {
	if action == "read" {
		n.Read = true
	}
	return n
}

func previewCase(c domain.VerificationCase, action string) domain.VerificationCase {
	if action == "close" {
		c.Status = "closed"
	}
	return c
}
