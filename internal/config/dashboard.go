package config

import "fmt"

// Dashboard describes the target web UI and the extension popup.
// Selectors use Playwright selector syntax ("css=...", "xpath=...").
type Dashboard struct {
	// URL is the dashboard root the login flow starts from.
	URL string `yaml:"url,omitempty"`

	// IPEchoURL is the external page used to probe proxy connectivity.
	IPEchoURL string `yaml:"ipEchoURL,omitempty"`

	// ExtensionPage is the popup path inside chrome-extension://<id>/.
	ExtensionPage string `yaml:"extensionPage,omitempty"`

	Selectors Selectors `yaml:"selectors,omitempty"`
	Phrases   Phrases   `yaml:"phrases,omitempty"`
}

// Selectors locate the UI elements the flows interact with.
type Selectors struct {
	Email             string `yaml:"email,omitempty"`
	Password          string `yaml:"password,omitempty"`
	Submit            string `yaml:"submit,omitempty"`
	LoginMarker       string `yaml:"loginMarker,omitempty"`
	StatusMarker      string `yaml:"statusMarker,omitempty"`
	OnboardingDismiss string `yaml:"onboardingDismiss,omitempty"`
	RegionMessage     string `yaml:"regionMessage,omitempty"`
	UsageMarker       string `yaml:"usageMarker,omitempty"`
	StatusIndicator   string `yaml:"statusIndicator,omitempty"`
}

// Phrases classify the status indicator text.
type Phrases struct {
	RegionBlocked string `yaml:"regionBlocked,omitempty"`
	Disconnected  string `yaml:"disconnected,omitempty"`
}

// DefaultRegionBlockedPhrase is shown by the extension when the egress
// region is not served.
const DefaultRegionBlockedPhrase = "Sorry, Gradient is not yet available in your region."

// DefaultDashboard returns the settings of app.gradient.network.
func DefaultDashboard() Dashboard {
	return Dashboard{
		URL:           "https://app.gradient.network/",
		IPEchoURL:     "https://myip.ipip.net",
		ExtensionPage: "popup.html",
		Selectors: Selectors{
			Email:             `css=[placeholder="Enter Email"]`,
			Password:          `css=[type="password"]`,
			Submit:            `css=button`,
			LoginMarker:       `xpath=//*[contains(text(), "Copy Referral Link")]`,
			StatusMarker:      `xpath=//div[contains(text(), "Status")]`,
			OnboardingDismiss: `xpath=//button[contains(text(), "I got it")]`,
			RegionMessage:     `xpath=//*[contains(text(), "` + DefaultRegionBlockedPhrase + `")]`,
			UsageMarker:       `xpath=//*[contains(text(), "Today's Taps")]`,
			StatusIndicator:   `css=.absolute.mt-3.right-0.z-10`,
		},
		Phrases: Phrases{
			RegionBlocked: DefaultRegionBlockedPhrase,
			Disconnected:  "Disconnected",
		},
	}
}

// Merge returns d with every non-empty field of override applied.
func (d Dashboard) Merge(override Dashboard) Dashboard {
	result := d
	setIfNotEmpty(&result.URL, override.URL)
	setIfNotEmpty(&result.IPEchoURL, override.IPEchoURL)
	setIfNotEmpty(&result.ExtensionPage, override.ExtensionPage)

	s, o := &result.Selectors, override.Selectors
	setIfNotEmpty(&s.Email, o.Email)
	setIfNotEmpty(&s.Password, o.Password)
	setIfNotEmpty(&s.Submit, o.Submit)
	setIfNotEmpty(&s.LoginMarker, o.LoginMarker)
	setIfNotEmpty(&s.StatusMarker, o.StatusMarker)
	setIfNotEmpty(&s.OnboardingDismiss, o.OnboardingDismiss)
	setIfNotEmpty(&s.RegionMessage, o.RegionMessage)
	setIfNotEmpty(&s.UsageMarker, o.UsageMarker)
	setIfNotEmpty(&s.StatusIndicator, o.StatusIndicator)

	setIfNotEmpty(&result.Phrases.RegionBlocked, override.Phrases.RegionBlocked)
	setIfNotEmpty(&result.Phrases.Disconnected, override.Phrases.Disconnected)
	return result
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Validate reports the first empty field.
func (d Dashboard) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"url", d.URL},
		{"ipEchoURL", d.IPEchoURL},
		{"extensionPage", d.ExtensionPage},
		{"selectors.email", d.Selectors.Email},
		{"selectors.password", d.Selectors.Password},
		{"selectors.submit", d.Selectors.Submit},
		{"selectors.loginMarker", d.Selectors.LoginMarker},
		{"selectors.statusMarker", d.Selectors.StatusMarker},
		{"selectors.onboardingDismiss", d.Selectors.OnboardingDismiss},
		{"selectors.regionMessage", d.Selectors.RegionMessage},
		{"selectors.usageMarker", d.Selectors.UsageMarker},
		{"selectors.statusIndicator", d.Selectors.StatusIndicator},
		{"phrases.regionBlocked", d.Phrases.RegionBlocked},
		{"phrases.disconnected", d.Phrases.Disconnected},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is empty", ErrIncompleteDashboard, f.name)
		}
	}
	return nil
}
