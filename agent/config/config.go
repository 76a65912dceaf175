// Package config loads the declarative tables the Router and Critic consult:
// hard-rule trigger phrases and feasibility policy thresholds. Keeping these
// as YAML data (rather than compiled-in Go literals) lets a deployment add
// trigger phrases or retune thresholds without a rebuild; compiled-in
// defaults matching spec.md are always available as a fallback.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// RouterRule is one hard-rule entry: if any Patterns regex matches the
	// utterance, the rule's route/confidence/reasons/budget apply.
	RouterRule struct {
		Name              string   `yaml:"name"`
		Patterns          []string `yaml:"patterns"`
		Route             string   `yaml:"route"`
		Confidence        float64  `yaml:"confidence"`
		Reasons           []string `yaml:"reasons"`
		ConsentRequired   bool     `yaml:"consent_required"`
		MaxSeconds        int      `yaml:"max_seconds"`
		MaxSteps          int      `yaml:"max_steps"`
		MaxBrowserSteps   int      `yaml:"max_browser_steps"`
	}

	// FeatureWeights tunes the feature-scoring stage of the Router.
	FeatureWeights struct {
		ConstraintBoost  float64 `yaml:"constraint_boost"`
		PlanningBoost    float64 `yaml:"planning_boost"`
		RealtimeBoost    float64 `yaml:"realtime_boost"`
		AmbiguityPenalty float64 `yaml:"ambiguity_penalty"`
		Base             float64 `yaml:"base"`
		DowngradeBelow   float64 `yaml:"downgrade_below"`
	}

	// RouterConfig is the full declarative Router table.
	RouterConfig struct {
		HardRules []RouterRule   `yaml:"hard_rules"`
		Features  FeatureWeights `yaml:"features"`
	}

	// CriticPolicy is the declarative Critic threshold table.
	CriticPolicy struct {
		WaitVisibilityThresholdMin int `yaml:"wait_visibility_threshold_min"`
	}
)

// LoadRouterConfig reads a RouterConfig from a YAML file at path. An empty
// path returns DefaultRouterConfig() without touching the filesystem.
func LoadRouterConfig(path string) (RouterConfig, error) {
	if path == "" {
		return DefaultRouterConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RouterConfig{}, fmt.Errorf("config: read router config: %w", err)
	}
	var cfg RouterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RouterConfig{}, fmt.Errorf("config: parse router config: %w", err)
	}
	return cfg, nil
}

// LoadCriticPolicy reads a CriticPolicy from a YAML file at path. An empty
// path returns DefaultCriticPolicy() without touching the filesystem.
func LoadCriticPolicy(path string) (CriticPolicy, error) {
	if path == "" {
		return DefaultCriticPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CriticPolicy{}, fmt.Errorf("config: read critic policy: %w", err)
	}
	var cfg CriticPolicy
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CriticPolicy{}, fmt.Errorf("config: parse critic policy: %w", err)
	}
	return cfg, nil
}

// DefaultCriticPolicy matches spec.md §4.6's wait_min > 15 threshold.
func DefaultCriticPolicy() CriticPolicy {
	return CriticPolicy{WaitVisibilityThresholdMin: 15}
}

// DefaultRouterConfig compiles in the hard-rule ladder and feature weights
// from spec.md §4.7, used whenever no YAML override is configured.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		HardRules: []RouterRule{
			{
				Name:            "high_risk_payment",
				Patterns:        []string{`(?i)支付`, `(?i)退款`, `(?i)批量.*(删除|修改)`},
				Route:           "SYSTEM2_REASONING",
				Confidence:      0.9,
				Reasons:         []string{"HIGH_RISK_ACTION"},
				ConsentRequired: true,
				MaxSeconds:      60,
				MaxSteps:        8,
				MaxBrowserSteps: 0,
			},
			{
				Name:            "realtime_webbrowse",
				Patterns:        []string{`(?i)官网`, `(?i)官方网站`, `(?i)实时`, `(?i)现在有没有`, `(?i)今天.*有房`, `(?i)下周.*有房`},
				Route:           "SYSTEM2_WEBBROWSE",
				Confidence:      0.9,
				Reasons:         []string{"REALTIME_WEB", "HIGH_RISK_ACTION"},
				ConsentRequired: true,
				MaxSeconds:      60,
				MaxSteps:        8,
				MaxBrowserSteps: 12,
			},
			{
				Name:            "crud_verbs",
				Patterns:        []string{`(?i)删除`, `(?i)移动`, `(?i)新增`, `(?i)调整优先级`, `(?i)置顶`},
				Route:           "SYSTEM1_API",
				Confidence:      0.85,
				MaxSeconds:      3,
				MaxSteps:        1,
				MaxBrowserSteps: 0,
			},
			{
				Name:            "factual_lookup",
				Patterns:        []string{`(?i)营业时间`, `(?i)价格`, `(?i)在哪`, `(?i)推荐`},
				Route:           "SYSTEM1_RAG",
				Confidence:      0.8,
			},
		},
		Features: FeatureWeights{
			ConstraintBoost:  0.3,
			PlanningBoost:    0.25,
			RealtimeBoost:    0.2,
			AmbiguityPenalty: 0.3,
			Base:             0.5,
			DowngradeBelow:   0.45,
		},
	}
}
