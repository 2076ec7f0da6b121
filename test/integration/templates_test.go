package integration

import (
	"net/http"
	"testing"
)

type templateResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Hits       int        `json:"hits"`
	TokenCount int        `json:"tokenCount"`
	Tokens     []apiToken `json:"tokens"`
}

func TestTemplates_CompileFromIncludePath(t *testing.T) {
	requireServer(t)

	var tmpl templateResponse
	code := getJSON(t, apiURL("templates/page.tx"), &tmpl)
	if code == http.StatusNotFound {
		t.Skip("server was not started with the testdata include path")
	}
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	want := "RAW OPEN IDENT CLOSE RAW INCLUDE STRING"
	if got := typesOf(tmpl.Tokens); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if tmpl.Tokens[6].Text != "partials/footer.tx" {
		t.Errorf("got include target %q", tmpl.Tokens[6].Text)
	}
	if tmpl.Tokens[0].File != tmpl.Path {
		t.Errorf("tokens should carry the template path, got %q", tmpl.Tokens[0].File)
	}

	var again templateResponse
	getJSON(t, apiURL("templates/page.tx"), &again)
	if again.ID != tmpl.ID {
		t.Error("second request should be served from the cache")
	}
	if again.Hits <= tmpl.Hits {
		t.Errorf("expected hit count to grow, got %d then %d", tmpl.Hits, again.Hits)
	}
}

func TestTemplates_NestedPartial(t *testing.T) {
	requireServer(t)

	var tmpl templateResponse
	code := getJSON(t, apiURL("templates/partials/footer.tx"), &tmpl)
	if code == http.StatusNotFound {
		t.Skip("server was not started with the testdata include path")
	}
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got := typesOf(tmpl.Tokens); got != "RAW OPEN IDENT CLOSE RAW" {
		t.Fatalf("got %s", got)
	}
	if tmpl.Tokens[1].Line != 2 {
		t.Errorf("got line %d, want 2", tmpl.Tokens[1].Line)
	}
}

func TestTemplates_NotFound(t *testing.T) {
	requireServer(t)

	var result apiError
	code := getJSON(t, apiURL("templates/does-not-exist.tx"), &result)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if result.Error.Kind != "TemplateNotFound" {
		t.Errorf("got kind %q", result.Error.Kind)
	}
}

func TestTemplates_List(t *testing.T) {
	requireServer(t)

	var list struct {
		Templates []templateResponse `json:"templates"`
	}
	if code := getJSON(t, apiURL("templates"), &list); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	for _, tmpl := range list.Templates {
		if len(tmpl.Tokens) != 0 {
			t.Errorf("list should not include tokens, got %d for %s", len(tmpl.Tokens), tmpl.Name)
		}
	}
}
