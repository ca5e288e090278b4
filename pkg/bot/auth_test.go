package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/pkg/session"
)

func TestHandleAuth(t *testing.T) {
	t.Run("both sessions live short-circuits", func(t *testing.T) {
		f := newFixture(t, Config{})
		seedDrive(t, f, "user@example.test", "/Media")

		f.handle(trigger("/auth"))

		if got := f.out.last(t).text; got != "Already authorized." {
			t.Fatalf("expected the short-circuit reply, got %q", got)
		}
		if f.auth.spawns != 0 {
			t.Fatalf("expected no callback server, got %d spawns", f.auth.spawns)
		}
	})

	t.Run("runs both logins in sequence", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.user.authorized = false
		f.auth.codes <- "code-1"

		f.handle(trigger("/auth"))

		if f.user.authorizeCalls != 1 {
			t.Fatalf("expected one telegram authorize call, got %d", f.user.authorizeCalls)
		}
		if f.auth.spawns != 2 || f.auth.releases != 2 {
			t.Fatalf("expected one listener per flow, got %d spawns %d releases", f.auth.spawns, f.auth.releases)
		}

		var texts []string
		for _, call := range f.out.history() {
			texts = append(texts, call.text)
		}
		joined := strings.Join(texts, "\n")
		if !strings.Contains(joined, "Telegram login: open https://bridge.example.test:2025") {
			t.Fatalf("expected the telegram login instructions, got %q", joined)
		}
		if !strings.Contains(joined, "Telegram login complete.") {
			t.Fatalf("expected the telegram login confirmation, got %q", joined)
		}
		if !strings.Contains(joined, "Logged in as user@example.test.") {
			t.Fatalf("expected the drive login confirmation, got %q", joined)
		}

		sess, ok := f.sessions.Current()
		if !ok || sess.Username != "user@example.test" {
			t.Fatalf("expected the drive session to be current, got %+v", sess)
		}
	})
}

func TestLoginDrive(t *testing.T) {
	t.Run("exchanges the delivered code", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.auth.codes <- "code-7"

		f.handle(trigger("/drive add"))

		if len(f.auth.states) != 1 || f.auth.states[0] == "" {
			t.Fatalf("expected one armed state, got %v", f.auth.states)
		}
		if len(f.drive.states) != 1 || f.drive.states[0] != f.auth.states[0] {
			t.Fatalf("expected the authorize URL to carry the armed state, got %v", f.drive.states)
		}

		history := f.out.history()
		if len(history) < 2 {
			t.Fatalf("expected the login URL and the confirmation, got %d messages", len(history))
		}
		if want := "Drive login: open https://login.example.test/authorize?state=" + f.auth.states[0]; history[0].text != want {
			t.Fatalf("expected %q, got %q", want, history[0].text)
		}

		if len(f.drive.exchanged) != 1 || f.drive.exchanged[0] != "code-7" {
			t.Fatalf("expected the delivered code to be exchanged, got %v", f.drive.exchanged)
		}

		sess, ok := f.sessions.Current()
		if !ok {
			t.Fatal("expected a current session after login")
		}
		if sess.Username != "user@example.test" || sess.AccessToken != "at-fresh" {
			t.Fatalf("unexpected stored session: %+v", sess)
		}
		if sess.RootPath != "/" {
			t.Fatalf("expected the default root path, got %s", sess.RootPath)
		}

		if got := f.out.last(t).text; got != "Logged in as user@example.test." {
			t.Fatalf("expected the login confirmation, got %q", got)
		}
	})

	t.Run("relogin keeps the account root path", func(t *testing.T) {
		f := newFixture(t, Config{})
		if err := f.sessions.Save(context.Background(), testSessionRow("user@example.test", "/Keep")); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		f.auth.codes <- "code-8"
		f.handle(trigger("/drive add"))

		sess, ok := f.sessions.Current()
		if !ok || sess.RootPath != "/Keep" {
			t.Fatalf("expected the previous root path to survive, got %+v", sess)
		}
	})

	t.Run("timeout surfaces as authorization failure", func(t *testing.T) {
		f := newFixture(t, Config{LoginTimeout: 30 * time.Millisecond})

		f.handle(trigger("/drive add"))

		got := f.out.last(t).text
		if !strings.Contains(got, "drive login timed out") {
			t.Fatalf("expected the timeout reply, got %q", got)
		}
		if f.auth.releases != 1 {
			t.Fatalf("expected the listener to be released, got %d", f.auth.releases)
		}
	})
}

func TestGuardDriveLogin(t *testing.T) {
	t.Run("live session passes through", func(t *testing.T) {
		f := newFixture(t, Config{})
		seedDrive(t, f, "user@example.test", "/Media")

		f.handle(trigger("/dir"))

		if got := f.out.last(t).text; got != "Directory: /Media" {
			t.Fatalf("expected the directory reply, got %q", got)
		}
		if f.auth.spawns != 0 {
			t.Fatal("expected no login flow for a live session")
		}
	})

	t.Run("missing session runs the login first", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.auth.codes <- "code-9"

		f.handle(trigger("/dir"))

		var texts []string
		for _, call := range f.out.history() {
			texts = append(texts, call.text)
		}
		joined := strings.Join(texts, "\n")
		if !strings.Contains(joined, "Logged in as user@example.test.") {
			t.Fatalf("expected the login to run first, got %q", joined)
		}
		if got := f.out.last(t).text; got != "Directory: /" {
			t.Fatalf("expected the command to continue after login, got %q", got)
		}
	})
}

func TestGuardTelegramLogin(t *testing.T) {
	f := newFixture(t, Config{})
	f.user.authorized = false

	f.handle(trigger("/clear"))

	if f.user.authorizeCalls != 1 {
		t.Fatalf("expected the telegram login to run, got %d calls", f.user.authorizeCalls)
	}
	if len(f.user.wipes) != 1 {
		t.Fatalf("expected the command to continue after login, got %v", f.user.wipes)
	}
	if got := f.out.last(t).text; got != "Cancelled 0 tasks and cleaned the chat." {
		t.Fatalf("expected the clear summary, got %q", got)
	}
}

func TestAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh token is returned as is", func(t *testing.T) {
		f := newFixture(t, Config{})
		seedDrive(t, f, "user@example.test", "/Media")

		token, err := f.bot.accessToken(ctx)
		if err != nil {
			t.Fatalf("accessToken failed: %v", err)
		}
		if token != "at-user@example.test" {
			t.Fatalf("expected the stored token, got %s", token)
		}
		if len(f.drive.refreshed) != 0 {
			t.Fatal("expected no refresh for a fresh token")
		}
	})

	t.Run("expired token is refreshed and persisted", func(t *testing.T) {
		f := newFixture(t, Config{})
		sess := testSessionRow("user@example.test", "/Media")
		sess.ExpirationTimestamp = time.Now().Add(-time.Hour)
		if err := f.sessions.Save(ctx, sess); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}
		if err := f.sessions.SetCurrentUser(ctx, sess.Username); err != nil {
			t.Fatalf("failed to set current user: %v", err)
		}

		token, err := f.bot.accessToken(ctx)
		if err != nil {
			t.Fatalf("accessToken failed: %v", err)
		}
		if token != "at-refreshed" {
			t.Fatalf("expected the refreshed token, got %s", token)
		}
		if len(f.drive.refreshed) != 1 || f.drive.refreshed[0] != "rt-user@example.test" {
			t.Fatalf("expected one refresh with the stored refresh token, got %v", f.drive.refreshed)
		}

		current, _ := f.sessions.Current()
		if current.AccessToken != "at-refreshed" || current.RefreshToken != "rt-refreshed" {
			t.Fatalf("expected the refreshed pair persisted, got %+v", current)
		}
	})

	t.Run("logged out errors with authorization kind", func(t *testing.T) {
		f := newFixture(t, Config{})

		_, err := f.bot.accessToken(ctx)
		if !apperr.IsKind(err, apperr.Authorization) {
			t.Fatalf("expected an authorization error, got %v", err)
		}
	})
}

// testSessionRow builds a valid live session for seeding.
func testSessionRow(username, root string) session.Session {
	return session.Session{
		Username:            username,
		ExpirationTimestamp: time.Now().Add(time.Hour),
		AccessToken:         "at-" + username,
		RefreshToken:        "rt-" + username,
		RootPath:            root,
	}
}
