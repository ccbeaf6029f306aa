package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds the values provided through the process environment.
type Env struct {
	User     string `envconfig:"APP_USER"`
	Password string `envconfig:"APP_PASS"`
	Proxy    string `envconfig:"PROXY"`
	Debug    bool   `envconfig:"ALLOW_DEBUG" default:"false"`
}

// LoadEnv reads Env from the environment.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("failed to load environment: %w", err)
	}
	return env, nil
}

// WithEnv returns c with the environment values applied.
func (c Config) WithEnv(env Env) Config {
	c.User = env.User
	c.Password = env.Password
	c.ProxyAddress = env.Proxy
	c.Debug = env.Debug
	return c
}
