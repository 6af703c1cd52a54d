package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "construction error",
			code:    "E001",
			wantMsg: "Invalid model props",
			wantCat: CategoryConstruction,
		},
		{
			name:    "access error",
			code:    "E104",
			wantMsg: "Readonly property",
			wantCat: CategoryAccess,
		},
		{
			name:    "async error",
			code:    "E211",
			wantMsg: "Load timed out",
			wantCat: CategoryAsync,
		},
		{
			name:    "loader error",
			code:    "E220",
			wantMsg: "Object not found",
			wantCat: CategoryLoader,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New("E104")
	detailed := sentinel.WithDetail(`prop "total"`)

	if !stderrors.Is(detailed, sentinel) {
		t.Error("detailed copy should match its sentinel")
	}
	if stderrors.Is(detailed, New("E101")) {
		t.Error("different codes should not match")
	}
	if sentinel.Detail == detailed.Detail {
		t.Error("WithDetail must not mutate the sentinel")
	}

	wrapped := fmt.Errorf("outer: %w", detailed)
	if !stderrors.Is(wrapped, sentinel) {
		t.Error("errors.Is should see through fmt wrapping")
	}
	if Code(wrapped) != "E104" {
		t.Errorf("Code() = %q, want E104", Code(wrapped))
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryConfig, "file %q not found", "livemodel.yaml")
	if err.Message != `file "livemodel.yaml" not found` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
	if stderrors.Is(err, Newf(CategoryConfig, "other")) {
		t.Error("uncoded errors only match themselves")
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New("E212").Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause should be reachable")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, want cause text", err.Error())
	}
	if FromError(nil, "E212") != nil {
		t.Error("FromError(nil) should be nil")
	}
	if got := FromError(err, "E001"); got.Code != "E212" {
		t.Errorf("FromError kept code %q, want E212", got.Code)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E104").
		WithDetail("prop total has a getter but no setter").
		WithSuggestion("register a Set hook")

	out := err.Format()
	for _, want := range []string{"ERROR E104: Readonly property", "getter but no setter", "Hint: register a Set hook"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if err.FormatCompact() != "E104: Readonly property" {
		t.Errorf("FormatCompact() = %q", err.FormatCompact())
	}
	if !strings.Contains(err.FormatJSON(), `"code":"E104"`) {
		t.Errorf("FormatJSON() = %s", err.FormatJSON())
	}

	var buf bytes.Buffer
	PrintError(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("PrintError() = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should produce no lines")
	}
}

func TestGetAllCodesSorted(t *testing.T) {
	codes := GetAllCodes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
	if _, ok := GetTemplate("E001"); !ok {
		t.Error("E001 should be registered")
	}
}
