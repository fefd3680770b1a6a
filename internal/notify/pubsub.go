package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
)

const defaultPublishTimeout = 10 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubNotifier publishes each message as JSON for downstream alerting.
type PubSubNotifier struct {
	pub     publisher
	timeout time.Duration
}

func NewPubSubNotifier(p *gcppubsub.Publisher, timeout time.Duration) (*PubSubNotifier, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newPubSubNotifier(&gcpPublisher{p}, timeout), nil
}

func newPubSubNotifier(pub publisher, timeout time.Duration) *PubSubNotifier {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PubSubNotifier{pub: pub, timeout: timeout}
}

func (n *PubSubNotifier) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build report message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode report message")
	}

	publishCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	result := n.pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"subject": msg.Subject},
	})
	if result == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "publisher returned no result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish report message")
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
