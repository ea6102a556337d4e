package enum

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// pcapngMagic is the section header block type that opens a pcapng file.
// It reads the same in either byte order.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// packetSource is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// PcapEnumerator yields TCP and UDP payloads from a pcap or pcapng capture
// file. Config.Root names the capture file.
type PcapEnumerator struct {
	config Config
	// ByFlow concatenates the payloads of each flow (transport, source and
	// destination) into one blob, so patterns split across packets match.
	ByFlow bool
}

// NewPcapEnumerator creates a new capture file enumerator.
func NewPcapEnumerator(config Config) *PcapEnumerator {
	return &PcapEnumerator{config: config}
}

// flow accumulates payloads for one direction of a conversation.
type flow struct {
	prov types.PcapProvenance
	buf  bytes.Buffer
}

// Enumerate reads the capture and yields one blob per packet payload, or
// one per flow when ByFlow is set.
func (e *PcapEnumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	f, err := os.Open(e.config.Root)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	src, err := openCapture(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("failed to read capture %s: %w", e.config.Root, err)
	}

	var (
		flows []*flow
		index = make(map[string]*flow)
	)
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			e.config.logger().Warn("truncated capture", "path", e.config.Root, "packet", n)
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read packet %d: %w", n, err)
		}

		payload, prov, ok := decodePayload(data, src.LinkType(), ci.Timestamp)
		if !ok {
			continue
		}
		prov.CaptureFile = e.config.Root
		prov.Packet = n

		if !e.ByFlow {
			if e.config.MaxFileSize > 0 && int64(len(payload)) > e.config.MaxFileSize {
				continue
			}
			if err := e.yield(bytes.Clone(payload), prov, callback); err != nil {
				return err
			}
			continue
		}

		key := prov.Transport + " " + prov.SrcAddr + " " + prov.DstAddr
		fl := index[key]
		if fl == nil {
			fl = &flow{prov: prov}
			index[key] = fl
			flows = append(flows, fl)
		}
		if e.config.MaxFileSize > 0 && int64(fl.buf.Len()+len(payload)) > e.config.MaxFileSize {
			continue
		}
		fl.buf.Write(payload)
	}

	for _, fl := range flows {
		if err := e.yield(fl.buf.Bytes(), fl.prov, callback); err != nil {
			return err
		}
	}
	return nil
}

func (e *PcapEnumerator) yield(content []byte, prov types.PcapProvenance, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	if !e.config.IncludeBinary && isBinary(content) {
		return nil
	}
	return callback(content, types.ComputeBlobID(content), prov)
}

// openCapture picks the pcap or pcapng reader from the file magic.
func openCapture(r *bufio.Reader) (packetSource, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(magic, pcapngMagic) {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}

// decodePayload returns the application payload of a TCP or UDP packet.
func decodePayload(data []byte, link layers.LinkType, ts time.Time) ([]byte, types.PcapProvenance, bool) {
	packet := gopacket.NewPacket(data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	app := packet.ApplicationLayer()
	netLayer := packet.NetworkLayer()
	if app == nil || netLayer == nil || len(app.Payload()) == 0 {
		return nil, types.PcapProvenance{}, false
	}

	var transport string
	var srcPort, dstPort int
	switch l := packet.TransportLayer().(type) {
	case *layers.TCP:
		transport, srcPort, dstPort = "tcp", int(l.SrcPort), int(l.DstPort)
	case *layers.UDP:
		transport, srcPort, dstPort = "udp", int(l.SrcPort), int(l.DstPort)
	default:
		return nil, types.PcapProvenance{}, false
	}

	srcIP, dstIP := netLayer.NetworkFlow().Endpoints()
	return app.Payload(), types.PcapProvenance{
		Timestamp: ts,
		Transport: transport,
		SrcAddr:   net.JoinHostPort(srcIP.String(), strconv.Itoa(srcPort)),
		DstAddr:   net.JoinHostPort(dstIP.String(), strconv.Itoa(dstPort)),
	}, true
}
