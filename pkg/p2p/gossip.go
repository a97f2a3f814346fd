package p2p

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

const (
	TopicTx     = "hyperbid-tx"
	TopicBlocks = "hyperbid-blocks"
)

// Handlers receive inbound gossip. Messages this node published are not delivered.
type Handlers struct {
	OnTx    func(raw []byte, from peer.ID)
	OnBlock func(b BlockWire, from peer.ID)
}

// Gossip spreads submitted txs and block announcements over GossipSub
type Gossip struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	tTx, tBlocks     *pubsub.Topic
	subTx, subBlocks *pubsub.Subscription

	muH      sync.RWMutex
	handlers Handlers
}

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewGossip(ctx context.Context, cfg Config) (*Gossip, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	g := &Gossip{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if err := g.joinTopics(); err != nil {
		h.Close()
		return nil, err
	}

	go g.handleTx(ctx)
	go g.handleBlocks(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return g, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (g *Gossip) joinTopics() error {
	var err error
	if g.tTx, err = g.ps.Join(TopicTx); err != nil {
		return err
	}
	if g.tBlocks, err = g.ps.Join(TopicBlocks); err != nil {
		return err
	}
	if g.subTx, err = g.tTx.Subscribe(); err != nil {
		return err
	}
	if g.subBlocks, err = g.tBlocks.Subscribe(); err != nil {
		return err
	}
	return nil
}

func (g *Gossip) SetHandlers(h Handlers) { g.muH.Lock(); g.handlers = h; g.muH.Unlock() }

func (g *Gossip) Host() host.Host { return g.h }

// TopicPeers returns the peers known to be subscribed to topic
func (g *Gossip) TopicPeers(topic string) []peer.ID {
	switch topic {
	case TopicTx:
		return g.tTx.ListPeers()
	case TopicBlocks:
		return g.tBlocks.ListPeers()
	}
	return nil
}

// Connect dials another gossip node directly
func (g *Gossip) Connect(ctx context.Context, info peer.AddrInfo) error {
	return g.h.Connect(ctx, info)
}

func (g *Gossip) PublishTx(ctx context.Context, raw []byte) error {
	data, err := encodeWire(TxWire{Tx: raw, Origin: g.h.ID().String()})
	if err != nil {
		return err
	}
	return g.tTx.Publish(ctx, data)
}

func (g *Gossip) AnnounceBlock(ctx context.Context, b BlockWire) error {
	data, err := encodeWire(b)
	if err != nil {
		return err
	}
	return g.tBlocks.Publish(ctx, data)
}

func (g *Gossip) Close() error {
	g.subTx.Cancel()
	g.subBlocks.Cancel()
	return g.h.Close()
}

// inbound

func (g *Gossip) handleTx(ctx context.Context) {
	for {
		msg, err := g.subTx.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == g.h.ID() {
			continue
		}
		var w TxWire
		if err := decodeWire(msg.Data, &w); err != nil {
			if g.log != nil {
				g.log.Debugw("bad_tx_wire", "from", msg.ReceivedFrom.String(), "err", err)
			}
			continue
		}

		g.muH.RLock()
		h := g.handlers
		g.muH.RUnlock()
		if h.OnTx != nil {
			h.OnTx(w.Tx, msg.ReceivedFrom)
		}
	}
}

func (g *Gossip) handleBlocks(ctx context.Context) {
	for {
		msg, err := g.subBlocks.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == g.h.ID() {
			continue
		}
		var b BlockWire
		if err := decodeWire(msg.Data, &b); err != nil {
			continue
		}

		g.muH.RLock()
		h := g.handlers
		g.muH.RUnlock()
		if h.OnBlock != nil {
			h.OnBlock(b, msg.ReceivedFrom)
		}
	}
}
