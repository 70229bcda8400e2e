// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package natsbus

import (
	"context"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/orchestrator"
)

// Publisher forwards orchestrator outputs to NATS subjects.
type Publisher struct {
	client *Client
	topics Topics
}

var _ orchestrator.Publisher = (*Publisher)(nil)

func NewPublisher(client *Client, topics Topics) *Publisher {
	return &Publisher{client: client, topics: topics}
}

func (p *Publisher) PublishResult(ctx context.Context, res *core.Result) error {
	return p.client.PublishJSON(p.topics.ResultsSuccess(), res)
}

func (p *Publisher) PublishError(ctx context.Context, res *core.Result) error {
	return p.client.PublishJSON(p.topics.ResultsError(), res)
}

func (p *Publisher) PublishStatistics(ctx context.Context, stats core.PipelineStatistics) error {
	return p.client.PublishJSON(p.topics.Stats(), stats)
}
