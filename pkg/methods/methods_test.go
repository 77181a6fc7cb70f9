package methods

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		wantPath      string
		wantPaginated bool
	}{
		{name: "paginated method", method: ConversationsList, wantPath: "conversations.list", wantPaginated: true},
		{name: "plain method", method: ChatPostMessage, wantPath: "chat.postMessage"},
		{name: "unknown method", method: "custom.thing", wantPath: "custom.thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Lookup(tt.method)
			if m.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", m.Path, tt.wantPath)
			}
			if m.Paginated != tt.wantPaginated {
				t.Errorf("Paginated = %v, want %v", m.Paginated, tt.wantPaginated)
			}
			if Path(tt.method) != tt.wantPath || IsPaginated(tt.method) != tt.wantPaginated {
				t.Error("Path/IsPaginated disagree with Lookup")
			}
		})
	}
}

func TestDeprecatedPrefix(t *testing.T) {
	tests := []struct {
		method     string
		wantPrefix string
		wantOK     bool
	}{
		{method: "channels.list", wantPrefix: "channels.", wantOK: true},
		{method: "im.open", wantPrefix: "im.", wantOK: true},
		{method: "workflows.stepCompleted", wantPrefix: "workflows.", wantOK: true},
		{method: "workflows.updateStep", wantPrefix: "workflows.", wantOK: true},
		{method: "conversations.list", wantOK: false},
		{method: "admin.conversations.search", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			prefix, ok := DeprecatedPrefix(tt.method)
			if ok != tt.wantOK || prefix != tt.wantPrefix {
				t.Errorf("DeprecatedPrefix(%q) = (%q, %v), want (%q, %v)", tt.method, prefix, ok, tt.wantPrefix, tt.wantOK)
			}
		})
	}
}
