package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MemoryBroker is a partitioned, offset-tracking broker held in process memory.
// It keeps Kafka's delivery contract: per-partition order, per-group committed
// offsets and redelivery of anything uncommitted to the next Source of a group.
type MemoryBroker struct {
	mu         sync.Mutex
	partitions int
	balancer   kafka.Balancer
	logs       map[string][][]Message
	committed  map[groupPartition]int64
	notify     chan struct{}
	closed     bool
}

type groupPartition struct {
	group     string
	topic     string
	partition int
}

func NewMemoryBroker(partitions int) *MemoryBroker {
	if partitions < 1 {
		partitions = 1
	}
	return &MemoryBroker{
		partitions: partitions,
		balancer:   &kafka.Hash{},
		logs:       make(map[string][][]Message),
		committed:  make(map[groupPartition]int64),
		notify:     make(chan struct{}),
	}
}

func (b *MemoryBroker) Partitions() int {
	return b.partitions
}

func (b *MemoryBroker) append(msg Message) (Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Message{}, ErrClosed
	}
	if msg.Topic == "" {
		return Message{}, fmt.Errorf("broker: message topic is required")
	}

	log, ok := b.logs[msg.Topic]
	if !ok {
		log = make([][]Message, b.partitions)
	}

	partition := PartitionFor(b.balancer, msg.Key, b.partitions)
	stored := msg.WithHeaders()
	stored.Key = append([]byte(nil), msg.Key...)
	stored.Value = append([]byte(nil), msg.Value...)
	stored.Partition = partition
	stored.Offset = int64(len(log[partition]))
	if stored.Time.IsZero() {
		stored.Time = time.Now().UTC()
	}

	log[partition] = append(log[partition], stored)
	b.logs[msg.Topic] = log

	close(b.notify)
	b.notify = make(chan struct{})

	return stored, nil
}

// Messages returns every message written to topic, partition by partition in offset order.
func (b *MemoryBroker) Messages(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Message
	for _, partition := range b.logs[topic] {
		out = append(out, partition...)
	}
	return out
}

// Committed returns the next offset group will read from topic/partition.
func (b *MemoryBroker) Committed(group, topic string, partition int) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[groupPartition{group: group, topic: topic, partition: partition}]
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.notify)
	}
	return nil
}

func (b *MemoryBroker) Producer() Producer {
	return &memoryProducer{broker: b}
}

// Source opens a reader for group on topic starting at the group's committed offsets.
func (b *MemoryBroker) Source(group, topic string) Source {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make([]int64, b.partitions)
	for p := range positions {
		positions[p] = b.committed[groupPartition{group: group, topic: topic, partition: p}]
	}

	return &memorySource{
		broker:    b,
		group:     group,
		topic:     topic,
		positions: positions,
		done:      make(chan struct{}),
	}
}

type memoryProducer struct {
	broker *MemoryBroker
}

func (p *memoryProducer) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.broker.append(msg)
	return err
}

func (p *memoryProducer) Close() error {
	return nil
}

type memorySource struct {
	broker    *MemoryBroker
	group     string
	topic     string
	positions []int64
	next      int
	done      chan struct{}
	closeOnce sync.Once
}

func (s *memorySource) Fetch(ctx context.Context) (Message, error) {
	for {
		msg, ok, wait, err := s.poll()
		if err != nil {
			return Message{}, err
		}
		if ok {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-s.done:
			return Message{}, ErrClosed
		case <-wait:
		}
	}
}

// poll scans partitions round-robin for the next unread message.
func (s *memorySource) poll() (Message, bool, <-chan struct{}, error) {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-s.done:
		return Message{}, false, nil, ErrClosed
	default:
	}
	if b.closed {
		return Message{}, false, nil, ErrClosed
	}

	log := b.logs[s.topic]
	for i := 0; i < b.partitions && log != nil; i++ {
		p := (s.next + i) % b.partitions
		if s.positions[p] < int64(len(log[p])) {
			msg := log[p][s.positions[p]]
			s.positions[p]++
			s.next = (p + 1) % b.partitions
			return msg, true, nil, nil
		}
	}

	return Message{}, false, b.notify, nil
}

func (s *memorySource) Commit(_ context.Context, msg Message) error {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	key := groupPartition{group: s.group, topic: msg.Topic, partition: msg.Partition}
	if next := msg.Offset + 1; next > b.committed[key] {
		b.committed[key] = next
	}
	return nil
}

func (s *memorySource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}
