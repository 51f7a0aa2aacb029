package providers

// Built-in count source identifiers.
const (
	Facebook  = "facebook"
	Pinterest = "pinterest"
	LinkedIn  = "linkedin"
	Reddit    = "reddit"
	Google    = "google"
)

// BuiltinProviders returns fresh copies of the built-in provider descriptors.
func BuiltinProviders() []Provider {
	return []Provider{
		{
			ID:          Facebook,
			Name:        "Facebook",
			Strategy:    StrategyGet,
			URLTemplate: "http://graph.facebook.com/?id={url}",
			Extract:     FieldExtractor("shares"),
		},
		{
			ID:          Pinterest,
			Name:        "Pinterest",
			Strategy:    StrategyJSONP,
			URLTemplate: "http://api.pinterest.com/v1/urls/count.json?callback=?&url={url}",
			Extract:     FieldExtractor("count"),
		},
		{
			ID:          LinkedIn,
			Name:        "LinkedIn",
			Strategy:    StrategyJSONP,
			URLTemplate: "http://www.linkedin.com/countserv/count/share?url={url}&format=jsonp&callback=?",
			Extract:     FieldExtractor("count"),
		},
		{
			ID:          Reddit,
			Name:        "Reddit",
			Strategy:    StrategyGet,
			URLTemplate: "https://www.reddit.com/api/info.json?url={url}",
			Extract:     SumExtractor([]string{"data", "children"}, []string{"data", "ups"}),
		},
		{
			ID:          Google,
			Name:        "Google+",
			Strategy:    StrategyPost,
			URLTemplate: "https://clients6.google.com/rpc",
			Body:        googlePlusOnesBody,
			Extract:     FieldExtractor("result", "metadata", "globalCounts", "count"),
		},
	}
}

// DefaultRegistry returns a registry holding the built-in providers.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(BuiltinProviders()...)
	if err != nil {
		panic("providers: invalid built-in registry: " + err.Error())
	}
	return reg
}

type googleRPCRequest struct {
	Method     string          `json:"method"`
	ID         string          `json:"id"`
	Params     googleRPCParams `json:"params"`
	JSONRPC    string          `json:"jsonrpc"`
	Key        string          `json:"key"`
	APIVersion string          `json:"apiVersion"`
}

type googleRPCParams struct {
	NoLog   bool   `json:"nolog"`
	ID      string `json:"id"`
	Source  string `json:"source"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

func googlePlusOnesBody(targetURL string) any {
	return googleRPCRequest{
		Method: "pos.plusones.get",
		ID:     "p",
		Params: googleRPCParams{
			NoLog:   true,
			ID:      targetURL,
			Source:  "widget",
			UserID:  "@viewer",
			GroupID: "@self",
		},
		JSONRPC:    "2.0",
		Key:        "p",
		APIVersion: "v1",
	}
}
