package remoteauth

// ApplicationPaths are the page paths the dispatcher navigates between.
// RemoteRegisterPath and RemoteProfilePath are empty when the identity
// provider does not offer registration or a profile page.
type ApplicationPaths struct {
	LogInPath           string `yaml:"login_path"`
	LogInCallbackPath   string `yaml:"login_callback_path"`
	LogInFailedPath     string `yaml:"login_failed_path"`
	LogOutPath          string `yaml:"logout_path"`
	LogOutCallbackPath  string `yaml:"logout_callback_path"`
	LogOutFailedPath    string `yaml:"logout_failed_path"`
	LogOutSucceededPath string `yaml:"logout_succeeded_path"`
	RegisterPath        string `yaml:"register_path"`
	ProfilePath         string `yaml:"profile_path"`
	RemoteRegisterPath  string `yaml:"remote_register_path"`
	RemoteProfilePath   string `yaml:"remote_profile_path"`
}

const DefaultPathPrefix = "authentication"

func DefaultApplicationPaths() ApplicationPaths {
	return ApplicationPathsWithPrefix(DefaultPathPrefix)
}

// ApplicationPathsWithPrefix builds the paths as "<prefix>/<action>".
func ApplicationPathsWithPrefix(prefix string) ApplicationPaths {
	p := func(a Action) string {
		return prefix + "/" + a.String()
	}
	return ApplicationPaths{
		LogInPath:           p(ActionLogIn),
		LogInCallbackPath:   p(ActionLogInCallback),
		LogInFailedPath:     p(ActionLogInFailed),
		LogOutPath:          p(ActionLogOut),
		LogOutCallbackPath:  p(ActionLogOutCallback),
		LogOutFailedPath:    p(ActionLogOutFailed),
		LogOutSucceededPath: p(ActionLogOutSucceeded),
		RegisterPath:        p(ActionRegister),
		ProfilePath:         p(ActionProfile),
	}
}

// Merge returns p with every empty field taken from defaults.
func (p ApplicationPaths) Merge(defaults ApplicationPaths) ApplicationPaths {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return ApplicationPaths{
		LogInPath:           pick(p.LogInPath, defaults.LogInPath),
		LogInCallbackPath:   pick(p.LogInCallbackPath, defaults.LogInCallbackPath),
		LogInFailedPath:     pick(p.LogInFailedPath, defaults.LogInFailedPath),
		LogOutPath:          pick(p.LogOutPath, defaults.LogOutPath),
		LogOutCallbackPath:  pick(p.LogOutCallbackPath, defaults.LogOutCallbackPath),
		LogOutFailedPath:    pick(p.LogOutFailedPath, defaults.LogOutFailedPath),
		LogOutSucceededPath: pick(p.LogOutSucceededPath, defaults.LogOutSucceededPath),
		RegisterPath:        pick(p.RegisterPath, defaults.RegisterPath),
		ProfilePath:         pick(p.ProfilePath, defaults.ProfilePath),
		RemoteRegisterPath:  pick(p.RemoteRegisterPath, defaults.RemoteRegisterPath),
		RemoteProfilePath:   pick(p.RemoteProfilePath, defaults.RemoteProfilePath),
	}
}

// PathsProvider supplies the application paths when none are configured
// on the dispatcher.
type PathsProvider interface {
	ApplicationPaths() ApplicationPaths
}

type StaticPaths ApplicationPaths

func (s StaticPaths) ApplicationPaths() ApplicationPaths {
	return ApplicationPaths(s)
}
