package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/clipforge/clipforge-backend/internal/domain"
)

// PlanConfig maps plan tiers to their monthly processing limits. Loaded from
// PLANS_YAML_PATH when set, otherwise the built-in defaults apply.
type PlanConfig struct {
	Limits map[types.Plan]int `yaml:"limits"`
}

func defaultPlanConfig() *PlanConfig {
	return &PlanConfig{
		Limits: map[types.Plan]int{
			types.PlanFree:    3,
			types.PlanStarter: 10,
			types.PlanPro:     30,
			types.PlanAgency:  0,
		},
	}
}

func LoadPlanConfig() (*PlanConfig, error) {
	path := strings.TrimSpace(os.Getenv("PLANS_YAML_PATH"))
	if path == "" {
		return defaultPlanConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans config: %w", err)
	}
	cfg := &PlanConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse plans config: %w", err)
	}
	if len(cfg.Limits) == 0 {
		return defaultPlanConfig(), nil
	}
	def := defaultPlanConfig()
	for plan, limit := range def.Limits {
		if _, ok := cfg.Limits[plan]; !ok {
			cfg.Limits[plan] = limit
		}
	}
	return cfg, nil
}

// LimitFor returns the monthly ceiling for a plan. Unlimited plans report 0.
func (c *PlanConfig) LimitFor(plan types.Plan) int {
	if plan.Unlimited() {
		return 0
	}
	if c == nil || c.Limits == nil {
		return defaultPlanConfig().Limits[types.PlanFree]
	}
	if limit, ok := c.Limits[plan]; ok {
		return limit
	}
	return defaultPlanConfig().Limits[types.PlanFree]
}
