package app

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/IBM/sarama"

	"ridehub/internal/app/ws"
)

// KafkaSink publishes router events to a Kafka topic for downstream
// consumers (fleet analytics, trip replay). It implements ws.EventSink.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
}

// NewKafkaSink connects an async producer to the configured broker.
func NewKafkaSink(host string, port int, topic string) (*KafkaSink, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Errors = true

	brokers := []string{host + ":" + strconv.Itoa(port)}

	producer, err := sarama.NewAsyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, err
	}
	log.Println("Kafka--> producer created")

	sink := &KafkaSink{producer: producer, topic: topic}
	go sink.drainErrors()
	return sink, nil
}

func (k *KafkaSink) drainErrors() {
	for err := range k.producer.Errors() {
		log.Println("Kafka--> produce:", err)
	}
}

// Publish enqueues the event without blocking the router; if the
// producer's buffer is full the event is dropped and logged. Event
// delivery is best-effort by design, same as frame delivery.
func (k *KafkaSink) Publish(ev ws.Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		log.Println("Kafka--> marshal event:", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.Kind),
		Value: sarama.ByteEncoder(value),
	}
	select {
	case k.producer.Input() <- msg:
	default:
		log.Printf("Kafka--> producer buffer full, dropping %s event", ev.Kind)
	}
}

// Close flushes and shuts down the producer.
func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
