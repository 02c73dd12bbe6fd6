package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/audit"
)

const (
	journalMagic   = "TRSYJNL1"
	journalVersion = uint32(1)
	headerSize     = 16 // 8 bytes magic + 4 bytes version + 4 bytes reserved

	// maxRecordSize bounds a single record. Audit events are small; a
	// record anywhere near this is corruption.
	maxRecordSize = 1 * 1024 * 1024

	// Record status values
	RecordPending uint8 = 1
	RecordShipped uint8 = 2
	RecordFailed  uint8 = 3
)

// journalRecord is a record's metadata in the index.
type journalRecord struct {
	sequence  int64
	offset    int64
	length    int64
	status    uint8
	timestamp int64
}

// writeHeader writes the journal file header.
func (j *Journal) writeHeader() error {
	header := make([]byte, headerSize)

	copy(header[0:8], journalMagic)
	binary.LittleEndian.PutUint32(header[8:12], journalVersion)
	binary.LittleEndian.PutUint32(header[12:16], 0) // Reserved

	if _, err := j.file.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return nil
}

// appendRecord encodes the event and writes a binary record to the file,
// returning the record length.
func (j *Journal) appendRecord(sequence int64, ev audit.Event) (int64, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	recordBytes := buildRecord(sequence, RecordPending, payload)

	n, err := j.file.Write(recordBytes)
	if err != nil {
		return 0, fmt.Errorf("failed to write record: %w", err)
	}

	return int64(n), nil
}

// buildRecord constructs a binary record with a CRC64 trailer.
//
// Record format (total: 32 + payload_len bytes):
// - Length (4 bytes, uint32) - total record length including this field
// - Sequence (8 bytes, int64) - record sequence number
// - Status (1 byte, uint8) - RecordPending/RecordShipped/RecordFailed
// - Reserved (3 bytes) - padding for alignment
// - Timestamp (8 bytes, int64) - Unix milliseconds of the append
// - Payload (variable) - JSON-encoded audit.Event
// - CRC64 (8 bytes, uint64) - CRC64-NVME over everything after the length field
func buildRecord(sequence int64, status uint8, payload []byte) []byte {
	totalLength := uint32(32 + len(payload))
	buf := new(bytes.Buffer)

	// binary.Write to a bytes.Buffer never errors
	_ = binary.Write(buf, binary.LittleEndian, totalLength)
	_ = binary.Write(buf, binary.LittleEndian, sequence)
	buf.WriteByte(status)
	buf.Write([]byte{0, 0, 0}) // Reserved padding
	_ = binary.Write(buf, binary.LittleEndian, time.Now().UnixMilli())
	buf.Write(payload)

	crc := computeCRC64(buf.Bytes()[4:])
	_ = binary.Write(buf, binary.LittleEndian, crc)

	return buf.Bytes()
}

// computeCRC64 computes a CRC64-NVME checksum.
func computeCRC64(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

// readRecordAt reads and validates the record at the given offset.
func readRecordAt(file *os.File, offset int64) (audit.Event, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return audit.Event{}, fmt.Errorf("failed to seek: %w", err)
	}

	var length uint32
	if err := binary.Read(file, binary.LittleEndian, &length); err != nil {
		return audit.Event{}, fmt.Errorf("failed to read length: %w", err)
	}

	if length < 32 || length > maxRecordSize {
		return audit.Event{}, fmt.Errorf("invalid record length: %d", length)
	}

	recordData := make([]byte, length)
	binary.LittleEndian.PutUint32(recordData[0:4], length)

	if _, err := io.ReadFull(file, recordData[4:]); err != nil {
		return audit.Event{}, fmt.Errorf("failed to read record: %w", err)
	}

	storedCRC := binary.LittleEndian.Uint64(recordData[len(recordData)-8:])
	computedCRC := computeCRC64(recordData[4 : len(recordData)-8])

	if storedCRC != computedCRC {
		return audit.Event{}, fmt.Errorf("CRC64 mismatch: stored=%x computed=%x", storedCRC, computedCRC)
	}

	// Layout: length(4) + sequence(8) + status(1) + reserved(3) + timestamp(8)
	payload := recordData[24 : len(recordData)-8]

	var ev audit.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return audit.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return ev, nil
}

// loadIndex scans the journal file and rebuilds the in-memory index.
// Scanning stops at the first corrupt record and the file is truncated
// there, which drops a torn tail from an interrupted write.
func (j *Journal) loadIndex() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(j.file, header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if magic := string(header[0:8]); magic != journalMagic {
		return fmt.Errorf("invalid magic: %s", magic)
	}

	if version := binary.LittleEndian.Uint32(header[8:12]); version != journalVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}

	for {
		offset, err := j.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("failed to get position: %w", err)
		}

		var length uint32
		if err := binary.Read(j.file, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			j.truncateAt(offset, "failed to read record length")
			break
		}

		if length < 32 || length > maxRecordSize {
			j.truncateAt(offset, "invalid record length")
			break
		}

		recordData := make([]byte, length-4)
		if _, err := io.ReadFull(j.file, recordData); err != nil {
			j.truncateAt(offset, "failed to read record data")
			break
		}

		sequence := int64(binary.LittleEndian.Uint64(recordData[0:8]))
		status := recordData[8]
		timestamp := int64(binary.LittleEndian.Uint64(recordData[12:20]))

		storedCRC := binary.LittleEndian.Uint64(recordData[len(recordData)-8:])
		computedCRC := computeCRC64(recordData[:len(recordData)-8])

		if storedCRC != computedCRC {
			j.truncateAt(offset, "CRC mismatch")
			break
		}

		j.index.Add(journalRecord{
			sequence:  sequence,
			offset:    offset,
			length:    int64(length),
			status:    status,
			timestamp: timestamp,
		})

		if sequence >= j.nextSequence {
			j.nextSequence = sequence + 1
		}
	}

	// Leave the write position at the end of the valid data.
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	return nil
}

func (j *Journal) truncateAt(offset int64, reason string) {
	log.Warn().
		Str("journal", j.name).
		Int64("offset", offset).
		Str("reason", reason).
		Msg("Corrupt journal tail, truncating")

	if err := j.file.Truncate(offset); err != nil {
		log.Warn().Err(err).Msg("Failed to truncate journal")
	}
}

// ReadFile scans a journal file read-only and returns every event it
// holds, stopping silently at a corrupt tail. Useful for offline
// inspection of journals.
func ReadFile(path string) ([]audit.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if magic := string(header[0:8]); magic != journalMagic {
		return nil, fmt.Errorf("invalid magic: %s", magic)
	}

	var events []audit.Event

	for {
		var length uint32
		if err := binary.Read(file, binary.LittleEndian, &length); err != nil {
			break
		}
		if length < 32 || length > maxRecordSize {
			break
		}

		recordData := make([]byte, length-4)
		if _, err := io.ReadFull(file, recordData); err != nil {
			break
		}

		storedCRC := binary.LittleEndian.Uint64(recordData[len(recordData)-8:])
		if storedCRC != computeCRC64(recordData[:len(recordData)-8]) {
			break
		}

		var ev audit.Event
		if err := json.Unmarshal(recordData[20:len(recordData)-8], &ev); err != nil {
			break
		}

		events = append(events, ev)
	}

	return events, nil
}
