package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"AquaPos/app/security"
)

const configFileName = "config.json"

// PrinterMode selects which receipt representation is sent to the printer
type PrinterMode string

const (
	// PrinterModeAuto derives the mode from the printer name
	PrinterModeAuto PrinterMode = ""
	// PrinterModePlainText sends formatted text with no control bytes
	PrinterModePlainText PrinterMode = "plain_text"
	// PrinterModeThermal sends raw ESC/POS bytes
	PrinterModeThermal PrinterMode = "thermal"
)

// CompanyConfig holds the business identity printed on receipt headers
type CompanyConfig struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Phone   string `json:"phone"`
	TaxID   string `json:"tax_id"`
}

// PrinterConfig holds printing preferences
type PrinterConfig struct {
	PrinterName      string      `json:"printer_name"`
	PaperWidthChars  int         `json:"paper_width_chars"`
	Mode             PrinterMode `json:"mode"`
	AutoCut          bool        `json:"auto_cut"`
	PrintCompanyInfo bool        `json:"print_company_info"`
	FooterText       string      `json:"footer_text"`
	ExtraMessage     string      `json:"extra_message"`
	QRContent        string      `json:"qr_content"`
	OutputDir        string      `json:"output_dir"`
	Kiosk            bool        `json:"kiosk"`
}

// PrintServerConfig holds the local print server connection settings
type PrintServerConfig struct {
	URL          string `json:"url"`
	WebSocketURL string `json:"websocket_url"`
	Port         int    `json:"port"`
	AuthToken    string `json:"auth_token,omitempty"` // Stored encrypted
	Advertise    bool   `json:"advertise"`
}

// AppConfig is the root application configuration
type AppConfig struct {
	Company     CompanyConfig     `json:"company"`
	Printer     PrinterConfig     `json:"printer"`
	PrintServer PrintServerConfig `json:"print_server"`
	DBPath      string            `json:"db_path"`
	FirstRun    bool              `json:"first_run"`
}

// ResolveMode returns the effective printer mode. An explicit mode wins;
// otherwise the printer name decides, since generic text-only Windows
// drivers mangle raw ESC/POS bytes.
func (p PrinterConfig) ResolveMode() PrinterMode {
	if p.Mode != PrinterModeAuto {
		return p.Mode
	}
	if strings.Contains(p.PrinterName, "Generic") || strings.Contains(p.PrinterName, "Text Only") {
		return PrinterModePlainText
	}
	return PrinterModeThermal
}

// Width returns the configured paper width in characters, falling back
// to the 80mm thermal default
func (p PrinterConfig) Width() int {
	if p.PaperWidthChars <= 0 {
		return 42
	}
	return p.PaperWidthChars
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	appDir := filepath.Join(configDir, "AquaPos")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}

	return filepath.Join(appDir, configFileName), nil
}

// CreateDefaultConfig returns a config with sensible defaults for a
// fresh installation
func CreateDefaultConfig() *AppConfig {
	return &AppConfig{
		Company: CompanyConfig{
			Name: "FONTE DE VIDA",
		},
		Printer: PrinterConfig{
			PaperWidthChars:  42,
			AutoCut:          true,
			PrintCompanyInfo: true,
			FooterText:       "Obrigado pela preferencia!\\nVolte sempre!",
			OutputDir:        "receipts",
		},
		PrintServer: PrintServerConfig{
			URL:          "http://localhost:3001",
			WebSocketURL: "ws://localhost:3001/ws",
			Port:         3001,
			Advertise:    true,
		},
		DBPath:   "aquapos.db",
		FirstRun: true,
	}
}

// LoadConfig reads the config file, creating a default one if missing.
// The auth token is decrypted in memory; the on-disk copy stays encrypted.
func LoadConfig() (*AppConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		cfg := CreateDefaultConfig()
		if saveErr := SaveConfig(cfg); saveErr != nil {
			return nil, saveErr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file: %w", err)
	}

	if cfg.PrintServer.AuthToken != "" {
		token, err := security.Decrypt(cfg.PrintServer.AuthToken)
		if err != nil {
			return nil, fmt.Errorf("could not decrypt auth token: %w", err)
		}
		cfg.PrintServer.AuthToken = token
	}

	return &cfg, nil
}

// SaveConfig writes the config file, encrypting sensitive fields first
func SaveConfig(cfg *AppConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	toSave := *cfg
	if toSave.PrintServer.AuthToken != "" {
		encrypted, err := security.Encrypt(toSave.PrintServer.AuthToken)
		if err != nil {
			return fmt.Errorf("could not encrypt auth token: %w", err)
		}
		toSave.PrintServer.AuthToken = encrypted
	}

	data, err := json.MarshalIndent(&toSave, "", "  ")
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return nil
}
