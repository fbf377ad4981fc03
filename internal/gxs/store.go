package gxs

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"

	"github.com/rs-go/retroshare-node/pkg/ids"
)

// Persistence encoding of Group/Message rows uses encoding/gob: the byte
// layout here is purely local storage, never sent over the wire (that
// codec lives in internal/wire and must stay byte-exact with RetroShare),
// so there is nothing for a wire-format library from the example pack to
// buy here; gob is the standard-library tool for exactly this job.
func init() {
	gob.Register(Group{})
	gob.Register(Message{})
}

const (
	prefixGroup      = "g:"  // g:<group_id> -> gob(Group)
	prefixGroupIndex = "gu:" // gu:<update_ts be64><group_id> -> group_id (update_ts index)
	prefixMessage    = "m:"  // m:<group_id><message_id> -> gob(Message)

	cacheSize = 512
)

var (
	ErrSignatureInvalid = fmt.Errorf("gxs: signature verification failed")
	ErrGroupNotFound    = fmt.Errorf("gxs: group not found")
	ErrKeyMissing       = fmt.Errorf("gxs: verification key missing")
)

// deriveEncryptionKey turns a passphrase into a symmetric key via
// PBKDF2-HMAC-SHA1, matching §4.G "non-empty passphrase enables
// encryption-at-rest"; badger's own EncryptionKey option consumes this
// directly.
func deriveEncryptionKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, 100_000, 32, sha1.New)
}

// AuditEntry records a dropped or deferred item for later inspection
// (§7 "record the decision in an audit log").
type AuditEntry struct {
	At     time.Time
	Kind   string // "signature", "missing_key", "malformed"
	Detail string
}

// Store is the persistent, per-GXS-service group/message store (§4.G). It
// is owned by exactly one worker goroutine (see worker.go); callers issue
// requests through the Worker rather than calling Store methods directly
// from multiple goroutines, mirroring the "store is the sole writer"
// cache-coherency rule.
type Store struct {
	log *logrus.Entry
	db  *badger.DB

	cache *lru.Cache[ids.GxsGroupID, Group]

	audit []AuditEntry
}

// OpenStoreOptions configures Open.
type OpenStoreOptions struct {
	Dir        string
	Passphrase string // empty: unencrypted store
	InMemory   bool   // true: ephemeral store for tests / mem_cache duty
}

func Open(log *logrus.Entry, opt OpenStoreOptions) (*Store, error) {
	var badgerOpts badger.Options
	if opt.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opt.Dir)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	if opt.Passphrase != "" {
		salt := []byte("retroshare-node-gxs-salt") // fixed: badger re-derives on every open
		badgerOpts = badgerOpts.WithEncryptionKey(deriveEncryptionKey(opt.Passphrase, salt)).
			WithIndexCacheSize(64 << 20)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("gxs: open store: %w", err)
	}
	cache, _ := lru.New[ids.GxsGroupID, Group](cacheSize)
	return &Store{log: log, db: db, cache: cache}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func groupKey(id ids.GxsGroupID) []byte {
	return append([]byte(prefixGroup), id[:]...)
}

func groupIndexKey(updateTS int64, id ids.GxsGroupID) []byte {
	buf := make([]byte, len(prefixGroupIndex)+8+len(id))
	n := copy(buf, prefixGroupIndex)
	binary.BigEndian.PutUint64(buf[n:], uint64(updateTS))
	copy(buf[n+8:], id[:])
	return buf
}

func messageKey(group ids.GxsGroupID, msg ids.GxsMessageID) []byte {
	buf := make([]byte, 0, len(prefixMessage)+len(group)+len(msg))
	buf = append(buf, []byte(prefixMessage)...)
	buf = append(buf, group[:]...)
	buf = append(buf, msg[:]...)
	return buf
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode[T any](b []byte) (T, error) {
	var out T
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&out)
	return out, err
}

// CanonicalGroupBytes returns the signed representation of a group minus
// its signature fields (§8 invariant 5: "canonical_bytes(g − signatures)").
func CanonicalGroupBytes(g Group) []byte {
	g2 := g
	g2.AdminSignature = nil
	b, _ := encode(g2)
	return b
}

// CanonicalMessageBytes returns the signed representation of a message
// minus its signature.
func CanonicalMessageBytes(m Message) []byte {
	m2 := m
	m2.Signature = nil
	b, _ := encode(m2)
	return b
}

// PutGroup verifies the admin signature and stores the group, bumping its
// local update timestamp (§4.G put_group, §8 invariant 5).
func (s *Store) PutGroup(g Group, now int64) error {
	ok, err := VerifyGroupAdmin(g, CanonicalGroupBytes(g))
	if err != nil {
		s.recordAudit("missing_key", err.Error())
		return fmt.Errorf("%w: %v", ErrKeyMissing, err)
	}
	if !ok {
		s.recordAudit("signature", fmt.Sprintf("group %s admin signature invalid", g.GroupID))
		return ErrSignatureInvalid
	}

	return s.db.Update(func(txn *badger.Txn) error {
		enc, err := encode(g)
		if err != nil {
			return err
		}
		if err := txn.Set(groupKey(g.GroupID), enc); err != nil {
			return err
		}
		if err := txn.Set(groupIndexKey(now, g.GroupID), g.GroupID[:]); err != nil {
			return err
		}
		s.cache.Add(g.GroupID, g)
		return nil
	})
}

// PutMessage verifies the author signature per the owning group's policy
// and stores the message (§4.G put_message).
func (s *Store) PutMessage(m Message, now int64, identity KeyResolver) error {
	g, err := s.GetGroupMetaRaw(m.GroupID)
	if err != nil {
		return fmt.Errorf("gxs: put_message: %w", err)
	}
	ok, err := VerifyMessageAuthor(g, m, CanonicalMessageBytes(m), identity)
	if err != nil {
		s.recordAudit("missing_key", err.Error())
		return fmt.Errorf("%w: %v", ErrKeyMissing, err)
	}
	if !ok {
		s.recordAudit("signature", fmt.Sprintf("message %s author signature invalid", m.MessageID))
		return ErrSignatureInvalid
	}

	return s.db.Update(func(txn *badger.Txn) error {
		enc, err := encode(m)
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(m.GroupID, m.MessageID), enc); err != nil {
			return err
		}
		return txn.Set(groupIndexKey(now, g.GroupID), g.GroupID[:])
	})
}

// GetGroupMetaRaw fetches a full group row, consulting the cache first.
func (s *Store) GetGroupMetaRaw(id ids.GxsGroupID) (Group, error) {
	if g, ok := s.cache.Get(id); ok {
		return g, nil
	}
	var g Group
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrGroupNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, derr := decode[Group](val)
			if derr != nil {
				return derr
			}
			g = decoded
			return nil
		})
	})
	if err == nil {
		s.cache.Add(id, g)
	}
	return g, err
}

// GetGroupMeta returns the summary form used in SyncGroup replies (§4.H).
func (s *Store) GetGroupMeta(id ids.GxsGroupID) (GroupMeta, error) {
	g, err := s.GetGroupMetaRaw(id)
	if err != nil {
		return GroupMeta{}, err
	}
	return GroupMeta{GroupID: g.GroupID, ServiceType: g.ServiceType, GroupName: g.GroupName, PublishTS: g.PublishTS}, nil
}

// GetMessages returns messages of group newer than sinceTS (§4.G
// get_messages).
func (s *Store) GetMessages(group ids.GxsGroupID, sinceTS int64) ([]Message, error) {
	var out []Message
	prefix := append([]byte(prefixMessage), group[:]...)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				m, derr := decode[Message](val)
				if derr != nil {
					return derr
				}
				if m.PublishTS > sinceTS {
					out = append(out, m)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// GroupsUpdatedSince returns group ids whose update index entries are
// newer than sinceTS, for the SyncGroup reply set (§4.H).
func (s *Store) GroupsUpdatedSince(sinceTS int64) ([]ids.GxsGroupID, error) {
	var out []ids.GxsGroupID
	lower := groupIndexKey(sinceTS+1, ids.GxsGroupID{})
	prefix := []byte(prefixGroupIndex)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(lower); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var id ids.GxsGroupID
				copy(id[:], val)
				out = append(out, id)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) recordAudit(kind, detail string) {
	s.audit = append(s.audit, AuditEntry{At: time.Now(), Kind: kind, Detail: detail})
	if s.log != nil {
		s.log.WithField("kind", kind).Warn("gxs: " + detail)
	}
}

func (s *Store) AuditLog() []AuditEntry { return append([]AuditEntry(nil), s.audit...) }
