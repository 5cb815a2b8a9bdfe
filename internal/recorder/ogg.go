package recorder

import (
	"encoding/binary"
	"os"
)

// oggWriter writes Opus packets into an OGG container.
// Reference: RFC 7845 (Ogg Encapsulation for Opus).
type oggWriter struct {
	w         *os.File
	serial    uint32
	pageSeqNo uint32
	channels  int
	sampleRate int
}

func newOGGWriter(f *os.File, sampleRate, channels int) *oggWriter {
	return &oggWriter{
		w:          f,
		serial:     0x44504950, // "DPIP"
		channels:   channels,
		sampleRate: sampleRate,
	}
}

// writeHeaders writes the mandatory OpusHead and OpusTags pages.
func (o *oggWriter) writeHeaders() error {
	head := make([]byte, 19)
	copy(head[0:8], "OpusHead")
	head[8] = 1 // version
	head[9] = byte(o.channels)
	binary.LittleEndian.PutUint16(head[10:12], 0) // pre-skip
	binary.LittleEndian.PutUint32(head[12:16], uint32(o.sampleRate))
	binary.LittleEndian.PutUint16(head[16:18], 0) // output gain
	head[18] = 0                                  // channel mapping family

	if err := o.writePage(head, 0, 2); err != nil { // flag 2 = beginning of stream
		return err
	}

	vendor := "directpipe"
	tags := make([]byte, 8+4+len(vendor)+4)
	copy(tags[0:8], "OpusTags")
	binary.LittleEndian.PutUint32(tags[8:12], uint32(len(vendor)))
	copy(tags[12:12+len(vendor)], vendor)
	binary.LittleEndian.PutUint32(tags[12+len(vendor):], 0)

	return o.writePage(tags, 0, 0)
}

// writeOpusPacket writes a single encoded Opus packet as an OGG page.
// granule is the page's granule position: the running per-channel sample
// count up to and including this packet.
func (o *oggWriter) writeOpusPacket(opus []byte, granule uint64) error {
	return o.writePage(opus, granule, 0)
}

// close writes the final empty EOS page.
func (o *oggWriter) close() error {
	return o.writePage(nil, 0, 4)
}

func (o *oggWriter) writePage(payload []byte, granulePos uint64, headerType byte) error {
	segments := len(payload) / 255
	if len(payload)%255 != 0 || len(payload) == 0 {
		segments++
	}
	if segments == 0 {
		segments = 1
	}

	segTable := make([]byte, segments)
	remaining := len(payload)
	for i := 0; i < segments; i++ {
		if remaining >= 255 {
			segTable[i] = 255
			remaining -= 255
		} else {
			segTable[i] = byte(remaining)
			remaining = 0
		}
	}

	header := make([]byte, 27+len(segTable))
	copy(header[0:4], "OggS")
	header[4] = 0          // version
	header[5] = headerType // header type
	binary.LittleEndian.PutUint64(header[6:14], granulePos)
	binary.LittleEndian.PutUint32(header[14:18], o.serial)
	binary.LittleEndian.PutUint32(header[18:22], o.pageSeqNo)
	header[26] = byte(len(segTable))
	copy(header[27:], segTable)

	crc := oggCRC(header, payload)
	binary.LittleEndian.PutUint32(header[22:26], crc)

	o.pageSeqNo++

	if _, err := o.w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := o.w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// oggCRC computes the OGG CRC-32 (unreflected form of polynomial 0x04C11DB7).
func oggCRC(header, payload []byte) uint32 {
	var crc uint32
	for _, b := range header {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	for _, b := range payload {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

var oggCRCTable = func() [256]uint32 {
	const poly = 0x04C11DB7
	var table [256]uint32
	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ poly
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return table
}()
