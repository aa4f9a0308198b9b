// Copyright 2024 The xline-operator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package operator

import "github.com/xline-kv/xline-operator/pkg/xline/supervisor"

// HeartbeatQueue is an unbounded channel of heartbeats: In() never blocks
// the HTTP handler waiting on the supervisor to drain, and Out() delivers
// them in arrival order.
type HeartbeatQueue struct {
	in  chan supervisor.HeartbeatStatus
	out chan supervisor.HeartbeatStatus
}

// NewHeartbeatQueue starts the queue's relay goroutine and returns it.
func NewHeartbeatQueue() *HeartbeatQueue {
	q := &HeartbeatQueue{
		in:  make(chan supervisor.HeartbeatStatus),
		out: make(chan supervisor.HeartbeatStatus),
	}
	go q.run()
	return q
}

// In is the write side: POST /monitor pushes here.
func (q *HeartbeatQueue) In() chan<- supervisor.HeartbeatStatus { return q.in }

// Out is the read side: the fleet supervisor drains here.
func (q *HeartbeatQueue) Out() <-chan supervisor.HeartbeatStatus { return q.out }

func (q *HeartbeatQueue) run() {
	defer close(q.out)
	var buf []supervisor.HeartbeatStatus
	for {
		if len(buf) == 0 {
			v, ok := <-q.in
			if !ok {
				return
			}
			buf = append(buf, v)
			continue
		}
		select {
		case v, ok := <-q.in:
			if !ok {
				for _, b := range buf {
					q.out <- b
				}
				return
			}
			buf = append(buf, v)
		case q.out <- buf[0]:
			buf = buf[1:]
		}
	}
}
