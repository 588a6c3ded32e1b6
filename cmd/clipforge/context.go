package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"clipforge/internal/api"
	"clipforge/internal/config"
)

type commandContext struct {
	serverFlag *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// serverBase returns the daemon API base URL: the --server flag when set,
// otherwise the configured API bind address.
func (c *commandContext) serverBase() (string, error) {
	if c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != "" {
		return strings.TrimSpace(*c.serverFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", fmt.Errorf("no daemon address: set paths.api_bind in config or pass --server")
	}
	return "http://" + bind, nil
}

func (c *commandContext) apiToken() string {
	if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
		return strings.TrimSpace(*c.tokenFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIToken
	}
	return ""
}

// newClient builds a daemon API client. timeout covers a full request; the
// generate flow passes a long one because it blocks for the whole pipeline.
func (c *commandContext) newClient(timeout time.Duration) (*api.Client, error) {
	base, err := c.serverBase()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(base, c.apiToken(), timeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.newClient(30 * time.Second)
	if err != nil {
		return err
	}
	return fn(client)
}
