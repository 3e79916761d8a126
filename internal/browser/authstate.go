package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// authState is the opaque auth artifact: cookies plus web storage,
// serialized as JSON. Consumers treat it as a blob; only this file knows
// its layout.
type authState struct {
	Cookies        []*proto.NetworkCookieParam `json:"cookies"`
	LocalStorage   string                      `json:"local_storage"`
	SessionStorage string                      `json:"session_storage"`
	SavedAt        time.Time                   `json:"saved_at"`
}

// SaveAuthState snapshots the session's cookies and web storage to path,
// creating parent directories as needed.
func (s *Session) SaveAuthState(path string) error {
	cookiesRes, err := proto.NetworkGetCookies{}.Call(s.page)
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookiesRes.Cookies))
	for _, c := range cookiesRes.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
			Priority: c.Priority,
		})
	}

	st := authState{
		Cookies:        params,
		LocalStorage:   snapshotStorage(s.page, "localStorage"),
		SessionStorage: snapshotStorage(s.page, "sessionStorage"),
		SavedAt:        time.Now(),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create auth state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write auth state: %w", err)
	}
	return nil
}

// RestoreAuthState applies a persisted auth artifact to the session.
// Returns false when no artifact exists at path.
func (s *Session) RestoreAuthState(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read auth state: %w", err)
	}

	var st authState
	if err := json.Unmarshal(data, &st); err != nil {
		return false, fmt.Errorf("parse auth state: %w", err)
	}

	if len(st.Cookies) > 0 {
		if err := s.page.SetCookies(st.Cookies); err != nil {
			return false, fmt.Errorf("restore cookies: %w", err)
		}
	}
	restoreStorage(s.page, st.LocalStorage, st.SessionStorage)
	return true, nil
}

// snapshotStorage serializes localStorage or sessionStorage to a JSON
// object string. Inaccessible storage (sandboxed frames) yields "{}".
func snapshotStorage(page *rod.Page, store string) string {
	js := fmt.Sprintf(`() => {
		try { return JSON.stringify(Object.fromEntries(Object.entries(%s))); }
		catch (e) { return "{}"; }
	}`, store)

	res, err := page.Evaluate(&rod.EvalOptions{JS: js, ByValue: true})
	if err != nil || res == nil || res.Value.Nil() {
		return "{}"
	}
	return res.Value.String()
}

// restoreStorage writes previously captured storage entries back into the
// page. Failures are swallowed: cookies alone are often enough.
func restoreStorage(page *rod.Page, localJSON, sessionJSON string) {
	_, _ = page.Evaluate(&rod.EvalOptions{
		JS: `(local, session) => {
			const apply = (raw, target) => {
				try {
					for (const [k, v] of Object.entries(JSON.parse(raw || "{}"))) {
						target.setItem(k, v);
					}
				} catch (e) {}
			};
			apply(local, localStorage);
			apply(session, sessionStorage);
		}`,
		JSArgs:  []interface{}{localJSON, sessionJSON},
		ByValue: true,
	})
}
