package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

// CredentialLookup returns the secret stored under an environment variable name
type CredentialLookup func(name string) string

// Credentials are the resolved account identifier and secret for a login
type Credentials struct {
	User     string
	Password string
}

// ResolveCredentials fetches both secrets a login flow needs. A missing
// one is reported as *domain.CredentialError.
func (l *LoginFlow) ResolveCredentials(source domain.JobSource, lookup CredentialLookup) (Credentials, error) {
	user := lookup(l.UserEnv)
	if user == "" {
		return Credentials{}, &domain.CredentialError{Source: source, Name: l.UserEnv}
	}
	pass := lookup(l.PassEnv)
	if pass == "" {
		return Credentials{}, &domain.CredentialError{Source: source, Name: l.PassEnv}
	}
	return Credentials{User: user, Password: pass}, nil
}

// login submits the sign-in form and checks the password field is gone
func (r *Runner) login(ctx context.Context, sess Session, src *Source, creds Credentials, log *zap.Logger) error {
	flow := src.Login
	formReady := func(doc *Document) bool {
		return doc.Exists(Chain{CSS(flow.UserSelector)})
	}

	if _, err := r.nav.Load(ctx, sess, flow.URL, formReady, r.opts.Search); err != nil {
		return fmt.Errorf("%w: login page: %w", domain.ErrSessionInit, err)
	}

	if err := sess.Fill(ctx, flow.UserSelector, creds.User); err != nil {
		return fmt.Errorf("%w: fill user: %w", domain.ErrSessionInit, err)
	}
	if err := sess.Fill(ctx, flow.PassSelector, creds.Password); err != nil {
		return fmt.Errorf("%w: fill password: %w", domain.ErrSessionInit, err)
	}
	if err := sess.Click(ctx, flow.SubmitSelector); err != nil {
		return fmt.Errorf("%w: submit: %w", domain.ErrSessionInit, err)
	}

	if err := r.pacer.Wait(ctx, r.opts.Search.Settle); err != nil {
		return err
	}

	doc, err := sess.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: after submit: %w", domain.ErrSessionInit, err)
	}
	if marker, blocked := BlockMarker(doc, r.opts.Search.BlockMarkers); blocked {
		return fmt.Errorf("%w: challenge after login (%s)", domain.ErrSessionInit, marker)
	}
	if doc.Exists(Chain{CSS(flow.PassSelector)}) {
		return fmt.Errorf("%w: still on login form", domain.ErrSessionInit)
	}

	log.Info("Logged in", zap.String("landing", doc.URL()))
	return nil
}
