package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileGate はYAMLファイル中のゲート設定。
// 省略されたキーは下位の設定（既定値）を上書きしない。
type FileGate struct {
	Enabled      *bool   `yaml:"enabled"`
	HeaderName   *string `yaml:"header_name"`
	TrustedProxy *string `yaml:"trusted_proxy"`
}

// FileConfig はYAML設定ファイルの内容。
type FileConfig struct {
	Listen              *string  `yaml:"listen"`
	Database            *string  `yaml:"database"`
	JWTSecret           *string  `yaml:"jwt_secret"`
	CORSOrigins         []string `yaml:"cors_origins"`
	TrustedHeaderAuth   FileGate `yaml:"trusted_header_auth"`
	TrustedForwardedFor FileGate `yaml:"trusted_forwarded_for"`
}

// LoadFile はYAML設定ファイルを読み込む。未知のキーはエラーにする。
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fc, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fc, fmt.Errorf("設定ファイルの解析に失敗: %s: %w", path, err)
	}
	return fc, nil
}

// apply はファイルで指定された値をcfgに上書きする。
func (fc FileConfig) apply(cfg *Config) {
	setString(&cfg.Listen, fc.Listen)
	setString(&cfg.DatabasePath, fc.Database)
	setString(&cfg.JWTSecret, fc.JWTSecret)
	if fc.CORSOrigins != nil {
		cfg.CORSOrigins = append([]string(nil), fc.CORSOrigins...)
	}
	fc.TrustedHeaderAuth.apply(&cfg.HeaderAuth)
	fc.TrustedForwardedFor.apply(&cfg.ForwardedFor)
}

func (fg FileGate) apply(s *GateSettings) {
	if fg.Enabled != nil {
		s.Enabled = *fg.Enabled
	}
	setString(&s.HeaderName, fg.HeaderName)
	setString(&s.TrustedProxy, fg.TrustedProxy)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
