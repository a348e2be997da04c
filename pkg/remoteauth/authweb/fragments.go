package authweb

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/gematik/zero-authui/pkg/remoteauth"
)

var (
	//go:embed templates/*.html
	templatesFS embed.FS
)

const layoutTemplate = "layout.html"

// FragmentFiles overrides the built-in fragments. Each file is parsed
// together with the built-in layout and must define a "content"
// template. Empty entries keep the built-in fragment.
type FragmentFiles struct {
	LogIn           string `yaml:"login"`
	LogInCallback   string `yaml:"login_callback"`
	LogInFailed     string `yaml:"login_failed"`
	LogOut          string `yaml:"logout"`
	LogOutCallback  string `yaml:"logout_callback"`
	LogOutFailed    string `yaml:"logout_failed"`
	LogOutSucceeded string `yaml:"logout_succeeded"`
	Register        string `yaml:"register"`
	Profile         string `yaml:"profile"`
	NotSupported    string `yaml:"not_supported"`
}

// FragmentData is what every fragment is executed with.
type FragmentData struct {
	Action  string
	Message string
	BaseURI string
	Paths   remoteauth.ApplicationPaths
}

// Fragments holds one template per action plus the not-supported
// fragment shown for register and profile.
type Fragments struct {
	byAction     map[remoteauth.Action]*template.Template
	notSupported *template.Template
}

func LoadFragments(files FragmentFiles) (*Fragments, error) {
	f := &Fragments{
		byAction: make(map[remoteauth.Action]*template.Template),
	}

	slots := []struct {
		action   remoteauth.Action
		override string
	}{
		{remoteauth.ActionLogIn, files.LogIn},
		{remoteauth.ActionLogInCallback, files.LogInCallback},
		{remoteauth.ActionLogInFailed, files.LogInFailed},
		{remoteauth.ActionLogOut, files.LogOut},
		{remoteauth.ActionLogOutCallback, files.LogOutCallback},
		{remoteauth.ActionLogOutFailed, files.LogOutFailed},
		{remoteauth.ActionLogOutSucceeded, files.LogOutSucceeded},
		{remoteauth.ActionRegister, files.Register},
		{remoteauth.ActionProfile, files.Profile},
	}

	for _, slot := range slots {
		t, err := loadFragment(slot.action.String()+".html", slot.override)
		if err != nil {
			return nil, err
		}
		f.byAction[slot.action] = t
	}

	var err error
	if f.notSupported, err = loadFragment("not-supported.html", files.NotSupported); err != nil {
		return nil, err
	}

	return f, nil
}

func loadFragment(builtin, override string) (*template.Template, error) {
	if override == "" {
		return template.ParseFS(templatesFS, "templates/"+layoutTemplate, "templates/"+builtin)
	}

	t, err := template.ParseFS(templatesFS, "templates/"+layoutTemplate)
	if err != nil {
		return nil, err
	}
	if t, err = t.ParseFiles(override); err != nil {
		return nil, fmt.Errorf("parse fragment %s: %w", override, err)
	}
	if t.Lookup("content") == nil {
		return nil, fmt.Errorf("fragment %s does not define a \"content\" template", override)
	}
	return t, nil
}

// Render writes the fragment selected by view.
func (f *Fragments) Render(w io.Writer, view *remoteauth.View, data FragmentData) error {
	t := f.byAction[view.Action]
	if view.NotSupported {
		t = f.notSupported
	}
	if t == nil {
		return fmt.Errorf("no fragment for action %s", view.Action)
	}
	return t.ExecuteTemplate(w, layoutTemplate, data)
}
