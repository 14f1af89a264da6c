package faq

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/faqbot/internal/model"
)

type seedFile struct {
	FAQs []model.CreateFAQRequest `yaml:"faqs"`
}

// LoadSeedFile reads a YAML document with a top-level "faqs" list.
func LoadSeedFile(path string) ([]model.CreateFAQRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) ([]model.CreateFAQRequest, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, req := range f.FAQs {
		if req.Question == "" || req.Answer == "" {
			return nil, fmt.Errorf("seed entry %d: question and answer are required", i)
		}
	}
	return f.FAQs, nil
}
