package broker

import (
	"github.com/segmentio/kafka-go"
)

// PartitionFor maps a key to a partition with the same hash the Kafka writer
// uses, so the in-memory broker orders keys exactly like a real cluster would.
func PartitionFor(balancer kafka.Balancer, key []byte, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	ids := make([]int, partitions)
	for i := range ids {
		ids[i] = i
	}
	return balancer.Balance(kafka.Message{Key: key}, ids...)
}
