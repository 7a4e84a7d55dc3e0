package lib

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

func GetKafkaProducerConfig(clientId string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         clientId,
		"acks":              "all",
	}
}

func GetKafkaConsumerConfig(groupId string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"group.id":          groupId,
		"auto.offset.reset": "smallest",
		"retry.backoff.ms":  100,
	}
}

// KafkaConsumer polls topics in the background and hands each message value to handler
// until ctx is done or the broker reports a fatal error.
func KafkaConsumer(ctx context.Context, groupId string, topics []string, handler types.Handler) error {
	log.Printf("[%s] Initializing kafka Consumer...\n", groupId)
	master, err := kafka.NewConsumer(GetKafkaConsumerConfig(groupId))
	if err != nil {
		log.Printf("Error on master: %s\n", err.Error())
		return err
	}
	if err := master.SubscribeTopics(topics, nil); err != nil {
		log.Printf("Error on consumer: %s\n", err.Error())
		master.Close()
		return err
	}
	go func() {
		defer master.Close()
		log.Printf("[%s] waiting for messages on %v...\n", groupId, topics)
		for ctx.Err() == nil {
			switch e := master.Poll(100).(type) {
			case *kafka.Message:
				go handler(string(e.Value))
			case kafka.Error:
				log.Printf("[%s] Kafka error: %s\n", groupId, e.Error())
				if e.IsFatal() {
					return
				}
			}
		}
	}()
	return nil
}

func KafkaProduceMessage(clientId string, topic string, payload any) error {
	p, err := kafka.NewProducer(GetKafkaProducerConfig(clientId))
	if err != nil {
		log.Printf("[%s] Error creating producer: %s\n", clientId, err.Error())
		return err
	}
	defer p.Close()
	value, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[%s] Error encoding payload: %s\n", clientId, err.Error())
		return err
	}
	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)
	if err != nil {
		log.Printf("[%s] Error sending data to %s: %s\n", clientId, topic, err.Error())
		return err
	}
	p.Flush(5000)
	return nil
}

func KafkaCreateTopics(topics ...string) ([]kafka.TopicResult, error) {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
	})
	if err != nil {
		log.Printf("Error on AdminClient: %s\n", err.Error())
		return nil, err
	}
	defer a.Close()
	topicsDef := []kafka.TopicSpecification{}
	for _, topic := range topics {
		topicsDef = append(topicsDef, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
	}
	result, err := a.CreateTopics(context.Background(), topicsDef)
	if err != nil {
		log.Printf("Error creating topics: %s\n", err.Error())
		return nil, err
	}
	return result, nil
}
