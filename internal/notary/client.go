package notary

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mauriceling/serebo/internal/clock"
	"github.com/mauriceling/serebo/internal/ledger"
	"github.com/mauriceling/serebo/internal/randomstring"
	"github.com/mauriceling/serebo/internal/store"
	"github.com/mauriceling/serebo/internal/storeerrors"
	"github.com/rs/zerolog"
)

// notRegisteredSentinel is the literal value a notary returns (as a
// full triple) when notarize references a (blackboxID,
// notaryAuthorization) pair it does not know.
const notRegisteredSentinel = "not registered"

// RegistrationAuthLength is the fixed length of notaryAuthorization.
const RegistrationAuthLength = 256

// NotaryCodeLength is the fixed length of the client's half of the
// cross-signing code, codeBB.
const NotaryCodeLength = 32

// Client talks to one remote notary over the XML-RPC-shaped wire
// contract and, on success, appends a local record describing the
// round trip.
type Client struct {
	url    string
	http   *http.Client
	store  *store.Store
	ledger *ledger.Ledger
	logger zerolog.Logger
}

// NewClient builds a notary client bound to one store (for the local
// `notary` table and the insertFText side effects) and one remote URL.
func NewClient(url string, s *store.Store, l *ledger.Ledger, logger zerolog.Logger) *Client {
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: 30 * time.Second},
		store:  s,
		ledger: l,
		logger: logger.With().Str("component", "notary.client").Str("url", url).Logger(),
	}
}

// Registration is the record of one successful register_blackbox call.
type Registration struct {
	NotaryURL           string
	NotaryAuthorization string
	NotaryDTS           string
}

// RegisterBlackbox registers the local black box's identity with the
// notary, then persists a local `notary` row.
// A duplicate registration (the server already knows this blackboxID)
// fails with ErrAlreadyRegistered and the local row is not touched.
func (c *Client) RegisterBlackbox(ctx context.Context, blackboxID, alias, owner, email,
	architecture, machine, node, platform, processor string) (Registration, error) {

	requestID := uuid.New().String()
	log := c.logger.With().Str("requestID", requestID).Logger()

	var existing int
	if err := c.store.DB().QueryRowContext(ctx,
		`select count(*) from notary where notaryurl = ?`, c.url).Scan(&existing); err != nil {
		return Registration{}, fmt.Errorf("%w: check existing registration: %v", storeerrors.ErrStoreIO, err)
	}
	if existing > 0 {
		return Registration{}, fmt.Errorf("%w: blackbox already registered with %s", storeerrors.ErrAlreadyRegistered, c.url)
	}

	reply, err := c.call(ctx, "register_blackbox", blackboxID, owner, email,
		architecture, machine, node, platform, processor)
	if err != nil {
		log.Error().Err(err).Msg("register_blackbox failed")
		return Registration{}, fmt.Errorf("%w: register_blackbox at %s: %v", storeerrors.ErrRemoteUnavailable, c.url, err)
	}
	if len(reply) != 2 {
		return Registration{}, fmt.Errorf("%w: register_blackbox at %s: unexpected reply shape", storeerrors.ErrRemoteUnavailable, c.url)
	}
	reg := Registration{NotaryURL: c.url, NotaryAuthorization: reply[0], NotaryDTS: reply[1]}

	if reg.NotaryAuthorization == notRegisteredSentinel {
		return Registration{}, fmt.Errorf("%w: blackbox %s", storeerrors.ErrAlreadyRegistered, blackboxID)
	}

	err = c.store.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`insert into notary (dtstamp, alias, owner, email, notarydts, notaryauthorization, notaryurl)
			 values (?, ?, ?, ?, ?, ?, ?)`,
			clock.Stamp(), alias, owner, email, reg.NotaryDTS, reg.NotaryAuthorization, reg.NotaryURL)
		return err
	})
	if err != nil {
		return Registration{}, fmt.Errorf("%w: persist registration: %v", storeerrors.ErrStoreIO, err)
	}
	log.Info().Str("blackboxID", blackboxID).Msg("registered with notary")
	return reg, nil
}

// Notarization is the outcome of one successful notarizeSereboBB round
// trip.
type Notarization struct {
	CodeBB, CodeNS, CodeCommon string
	DTStampBB, DTStampNS       string
}

// NotarizeSereboBB runs one cross-signing round: the black box sends a
// fresh nonce, the notary answers with its own nonce and the common
// cross-signing code. On success, it appends a local datalog entry via
// InsertFText with data=codeCommon and a pipe-separated description.
// If the notary does not recognize the registration, no local row is
// written and the error wraps ErrNotRegistered.
func (c *Client) NotarizeSereboBB(ctx context.Context, blackboxID, notaryAuthorization string) (Notarization, error) {
	requestID := uuid.New().String()
	log := c.logger.With().Str("requestID", requestID).Logger()

	dtstampBB := clock.Stamp()
	codeBB := randomstring.Generate(NotaryCodeLength)

	reply, err := c.call(ctx, "notarize_blackbox", blackboxID, notaryAuthorization, dtstampBB, codeBB)
	if err != nil {
		log.Error().Err(err).Msg("notarize_blackbox failed")
		return Notarization{}, fmt.Errorf("%w: notarize_blackbox at %s: %v", storeerrors.ErrRemoteUnavailable, c.url, err)
	}
	if len(reply) != 3 {
		return Notarization{}, fmt.Errorf("%w: notarize_blackbox at %s: unexpected reply shape", storeerrors.ErrRemoteUnavailable, c.url)
	}
	dtstampNS, codeNS, codeCommon := reply[0], reply[1], reply[2]
	if dtstampNS == notRegisteredSentinel || codeNS == notRegisteredSentinel || codeCommon == notRegisteredSentinel {
		return Notarization{}, fmt.Errorf("%w: blackbox %s", storeerrors.ErrNotRegistered, blackboxID)
	}

	result := Notarization{CodeBB: codeBB, CodeNS: codeNS, CodeCommon: codeCommon, DTStampBB: dtstampBB, DTStampNS: dtstampNS}
	description := fmt.Sprintf(
		"Notarization with SEREBO Notary | Black Box Code: %s | Black Box Date Time: %s | Notary Code: %s | Notary Date Time: %s | Notary URL: %s",
		result.CodeBB, result.DTStampBB, result.CodeNS, result.DTStampNS, c.url)
	if _, err := c.ledger.InsertFText(ctx, result.CodeCommon, description); err != nil {
		return Notarization{}, fmt.Errorf("notary: record notarization locally: %w", err)
	}
	log.Info().Str("blackboxID", blackboxID).Msg("notarized")
	return result, nil
}

// CheckBlackBoxRegistration queries whether the notary still lists
// blackboxID as registered.
func (c *Client) CheckBlackBoxRegistration(ctx context.Context, blackboxID string) (bool, error) {
	reply, err := c.call(ctx, "check_blackbox_registration", blackboxID)
	if err != nil {
		return false, fmt.Errorf("%w: check_blackbox_registration at %s: %v", storeerrors.ErrRemoteUnavailable, c.url, err)
	}
	return len(reply) == 1 && reply[0] == "true", nil
}

// CheckNotarization queries whether the notary holds a notarization
// record for (blackboxID, notaryAuthorization).
func (c *Client) CheckNotarization(ctx context.Context, blackboxID, notaryAuthorization string) (bool, error) {
	reply, err := c.call(ctx, "check_notarization", blackboxID, notaryAuthorization)
	if err != nil {
		return false, fmt.Errorf("%w: check_notarization at %s: %v", storeerrors.ErrRemoteUnavailable, c.url, err)
	}
	return len(reply) == 1 && reply[0] == "true", nil
}

func (c *Client) call(ctx context.Context, method string, args ...string) ([]string, error) {
	body, err := encodeCall(method, args...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("notary: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notary: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("notary: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notary: remote returned status %d", resp.StatusCode)
	}
	return decodeResponse(respBody)
}
