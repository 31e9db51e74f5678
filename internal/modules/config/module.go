package config

import "go.uber.org/fx"

// Module отдаёт уже загруженный и провалидированный конфиг: main читает его
// до старта fx, чтобы упасть раньше любых подключений.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
