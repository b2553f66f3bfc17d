package strategy

import (
	"fmt"
)

func NewStrategy(strategyType string, config map[string]interface{}) (Strategy, error) {
	switch strategyType {
	case "rsi_macd":
		oversold, err := threshold(config, "oversold", DefaultOversold)
		if err != nil {
			return nil, err
		}
		overbought, err := threshold(config, "overbought", DefaultOverbought)
		if err != nil {
			return nil, err
		}
		if oversold <= 0 || overbought >= 100 || oversold >= overbought {
			return nil, fmt.Errorf("invalid config for rsi_macd: need 0 < oversold < overbought < 100, got %v/%v", oversold, overbought)
		}
		return NewRSIMACDStrategy(oversold, overbought), nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", strategyType)
	}
}

func threshold(config map[string]interface{}, key string, def float64) (float64, error) {
	raw, ok := config[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("invalid config for rsi_macd: %s must be a number", key)
	}
}
