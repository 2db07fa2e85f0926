package rabbitmq

import "currency-conversion-service/config"

func configFor(url string) config.RabbitMQConfig {
	return config.RabbitMQConfig{URL: url, Exchange: "payment-events"}
}
