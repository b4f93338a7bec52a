package models

// Plan key constants
const (
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Plan describes a subscription tier
type Plan struct {
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	PriceMXN  int64    `json:"price_mxn"` // cents
	PriceUSD  int64    `json:"price_usd"` // cents
	Features  []string `json:"features"`
	Instances int      `json:"instances"`
	ModelType string   `json:"model_type"`
}

// Plans is the subscription catalog, keyed by plan key
var Plans = map[string]Plan{
	PlanStarter: {
		Key:       PlanStarter,
		Name:      "Starter",
		PriceMXN:  9900,
		PriceUSD:  500,
		Features:  []string{"Shared container", "OpenRouter models", "1 assistant", "Telegram"},
		Instances: 1,
		ModelType: ModelTypeOpenRouter,
	},
	PlanPro: {
		Key:       PlanPro,
		Name:      "Pro",
		PriceMXN:  24900,
		PriceUSD:  1200,
		Features:  []string{"Dedicated VPS", "Bring your own API key", "2 assistants", "Telegram + WhatsApp"},
		Instances: 2,
		ModelType: ModelTypeBYOK,
	},
	PlanBusiness: {
		Key:       PlanBusiness,
		Name:      "Business",
		PriceMXN:  49900,
		PriceUSD:  2500,
		Features:  []string{"Dedicated VPS + local models", "BYOK + Ollama", "5 assistants", "All channels"},
		Instances: 5,
		ModelType: ModelTypeOllama,
	},
}

// ValidPlan reports whether key names a known plan
func ValidPlan(key string) bool {
	_, ok := Plans[key]
	return ok
}

// InstanceQuota returns the instance limit for a plan, defaulting to 1
func InstanceQuota(plan string) int {
	if p, ok := Plans[plan]; ok {
		return p.Instances
	}
	return 1
}
