package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeKeywords()
	c.normalizeStock()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Paths.SigningSecret = strings.TrimSpace(c.Paths.SigningSecret)
	if c.Paths.SigningSecret == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_SIGNING_SECRET"); ok {
			c.Paths.SigningSecret = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicBaseURL), "/")
	if c.Paths.PublicBaseURL == "" {
		c.Paths.PublicBaseURL = "http://" + c.Paths.APIBind
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.FFmpegBinary = strings.TrimSpace(c.Pipeline.FFmpegBinary)
	if c.Pipeline.FFmpegBinary == "" {
		c.Pipeline.FFmpegBinary = defaultFFmpegBinary
	}
	c.Pipeline.FFprobeBinary = strings.TrimSpace(c.Pipeline.FFprobeBinary)
	if c.Pipeline.FFprobeBinary == "" {
		c.Pipeline.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Pipeline.DownloadTimeout <= 0 {
		c.Pipeline.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Pipeline.CreditsPerJob <= 0 {
		c.Pipeline.CreditsPerJob = defaultCreditsPerJob
	}
	if c.Pipeline.CreditsPerGeneration <= 0 {
		c.Pipeline.CreditsPerGeneration = defaultCreditsPerGeneration
	}
	if c.Pipeline.LinkTTLHours <= 0 {
		c.Pipeline.LinkTTLHours = defaultLinkTTLHours
	}
}

func (c *Config) normalizeKeywords() {
	if c.Keywords.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_KEYWORDS_API_KEY"); ok {
			c.Keywords.APIKey = value
		}
	}
	c.Keywords.BaseURL = strings.TrimSpace(c.Keywords.BaseURL)
	if c.Keywords.BaseURL == "" {
		c.Keywords.BaseURL = defaultKeywordsBaseURL
	}
	c.Keywords.Model = strings.TrimSpace(c.Keywords.Model)
	if c.Keywords.Model == "" {
		c.Keywords.Model = defaultKeywordsModel
	}
	if c.Keywords.MaxKeywords <= 0 || c.Keywords.MaxKeywords > defaultKeywordsMax {
		c.Keywords.MaxKeywords = defaultKeywordsMax
	}
	if c.Keywords.TimeoutSeconds <= 0 {
		c.Keywords.TimeoutSeconds = defaultKeywordsTimeoutSeconds
	}
}

func (c *Config) normalizeStock() {
	if c.Stock.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_STOCK_API_KEY"); ok {
			c.Stock.APIKey = value
		}
	}
	c.Stock.BaseURL = strings.TrimSpace(c.Stock.BaseURL)
	if c.Stock.BaseURL == "" {
		c.Stock.BaseURL = defaultStockBaseURL
	}
	c.Stock.Orientation = strings.ToLower(strings.TrimSpace(c.Stock.Orientation))
	if c.Stock.Orientation == "" {
		c.Stock.Orientation = defaultStockOrientation
	}
	if c.Stock.TimeoutSeconds <= 0 {
		c.Stock.TimeoutSeconds = defaultStockTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
