package openai

import "time"

type Config struct {
	APIKey     string
	BaseURL    string // default https://api.openai.com/v1
	CheapModel string
	HeavyModel string
	Timeout    time.Duration
}

func (c *Config) withDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.CheapModel == "" {
		c.CheapModel = "gpt-4o-mini"
	}
	if c.HeavyModel == "" {
		c.HeavyModel = "gpt-4o"
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
}
