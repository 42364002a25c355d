package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// defaultConfig is the document written to ~/.openrouter-proxy/config.yaml
// on first launch. Database.Path is left blank so Load's caller falls back
// to HomeDir()/proxy.db rather than baking an unexpanded "~" into the file.
var defaultConfig = Config{
	Server: ServerConfig{
		Host:          "127.0.0.1",
		PortRangeFrom: 11434,
		PortRangeTo:   11534,
		AutoStart:     true,
	},
	OpenRouter: OpenRouterConfig{
		BaseURL:        "https://openrouter.ai/api/v1",
		HTTPReferer:    "https://github.com/DimazzzZ/openrouter-proxy-core",
		XTitle:         "OpenRouter Proxy Core",
		TimeoutSeconds: 120,
	},
	Log: LogConfig{
		Level:  "info",
		Format: "console",
	},
}

// Bootstrap ensures ~/.openrouter-proxy exists with a default config.yaml.
// Safe to call on every startup — it never overwrites an existing file.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create home dir %s: %w", root, err)
	}

	configPath := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		logger.Debug("config home OK", zap.String("home", root))
		return nil
	}

	doc, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	header := "# openrouter-proxy configuration\n# Auto-generated on first launch.\n\n"

	if err := os.WriteFile(configPath, append([]byte(header), doc...), 0644); err != nil {
		logger.Warn("failed to write default config", zap.String("path", configPath), zap.Error(err))
		return nil
	}
	logger.Info("wrote default config", zap.String("path", configPath))
	return nil
}
