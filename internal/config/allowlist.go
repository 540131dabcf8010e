package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Admin is one operator allowed to send commands by SMS
type Admin struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

type allowlistFile struct {
	Admins []Admin `yaml:"admins"`
}

// LoadAdmins merges ADMIN_PHONES with the entries of ADMIN_ALLOWLIST_FILE
func (c *Config) LoadAdmins() ([]Admin, error) {
	admins := make([]Admin, 0, len(c.SMS.AdminPhones))
	for _, phone := range c.SMS.AdminPhones {
		admins = append(admins, Admin{Phone: phone})
	}

	if c.SMS.AllowlistFile == "" {
		return admins, nil
	}

	data, err := os.ReadFile(c.SMS.AllowlistFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin allow-list: %w", err)
	}

	fromFile, err := ParseAdmins(data)
	if err != nil {
		return nil, err
	}

	return append(admins, fromFile...), nil
}

// ParseAdmins decodes an allow-list document
func ParseAdmins(data []byte) ([]Admin, error) {
	var file allowlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse admin allow-list: %w", err)
	}

	for i, admin := range file.Admins {
		if admin.Phone == "" {
			return nil, fmt.Errorf("admin allow-list entry %d has no phone", i)
		}
	}
	return file.Admins, nil
}
