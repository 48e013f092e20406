package notary

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/mauriceling/serebo/internal/clock"
	"github.com/mauriceling/serebo/internal/hashcomposite"
	"github.com/mauriceling/serebo/internal/randomstring"
	"github.com/rs/zerolog"
)

type registeredBlackbox struct {
	dtstamp, owner, email                            string
	architecture, machine, node, platform, processor string
	notaryAuthorization                              string
}

type notarizeRecord struct {
	blackboxID, notaryAuthorization                  string
	dtstampBB, dtstampNS, codeBB, codeNS, codeCommon string
}

type eventlogEntry struct {
	dtstamp, event string
}

// ReferenceServer is an in-memory net/http.Handler implementing the
// notary wire contract. It is a test double: it never persists to disk
// and never hosts itself. It exists to pin the client/server contract
// down executably.
type ReferenceServer struct {
	mu sync.Mutex

	registrations map[string]registeredBlackbox // keyed by blackboxID
	notarizations []notarizeRecord
	eventlog      []eventlogEntry

	logger zerolog.Logger
}

// NewReferenceServer builds an empty in-memory notary.
func NewReferenceServer(logger zerolog.Logger) *ReferenceServer {
	return &ReferenceServer{
		registrations: make(map[string]registeredBlackbox),
		logger:        logger.With().Str("component", "notary.server").Logger(),
	}
}

// ServeHTTP implements net/http.Handler, dispatching on the decoded
// methodName.
func (s *ReferenceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	method, args, err := decodeCall(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var reply []string
	switch method {
	case "register_blackbox":
		reply, err = s.registerBlackbox(args)
	case "notarize_blackbox":
		reply, err = s.notarizeBlackbox(args)
	case "check_blackbox_registration":
		reply, err = s.checkBlackBoxRegistration(args)
	case "check_notarization":
		reply, err = s.checkNotarization(args)
	default:
		http.Error(w, fmt.Sprintf("unknown method %q", method), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out, err := encodeResponse(reply...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write(out)
}

func (s *ReferenceServer) registerBlackbox(args []string) ([]string, error) {
	if len(args) != 8 {
		return nil, fmt.Errorf("notary: register_blackbox: expected 8 args, got %d", len(args))
	}
	blackboxID, owner, email, architecture, machine, node, platform, processor := args[0], args[1], args[2], args[3], args[4], args[5], args[6], args[7]

	s.mu.Lock()
	defer s.mu.Unlock()

	dtstamp := clock.Stamp()
	if _, exists := s.registrations[blackboxID]; exists {
		s.logEvent(dtstamp, fmt.Sprintf("register_blackbox rejected | duplicate blackboxID: %s", blackboxID))
		return []string{notRegisteredSentinel, notRegisteredSentinel}, nil
	}

	auth := randomstring.Generate(RegistrationAuthLength)
	s.registrations[blackboxID] = registeredBlackbox{
		dtstamp: dtstamp, owner: owner, email: email,
		architecture: architecture, machine: machine, node: node,
		platform: platform, processor: processor, notaryAuthorization: auth,
	}
	s.logEvent(dtstamp, fmt.Sprintf("register_blackbox succeeded | blackboxID: %s", blackboxID))
	return []string{auth, dtstamp}, nil
}

func (s *ReferenceServer) notarizeBlackbox(args []string) ([]string, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("notary: notarize_blackbox: expected 4 args, got %d", len(args))
	}
	blackboxID, notaryAuthorization, dtstampBB, codeBB := args[0], args[1], args[2], args[3]

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[blackboxID]
	if !ok || reg.notaryAuthorization != notaryAuthorization {
		s.logEvent(clock.Stamp(), fmt.Sprintf("notarize_blackbox rejected | blackboxID: %s", blackboxID))
		return []string{notRegisteredSentinel, notRegisteredSentinel, notRegisteredSentinel}, nil
	}

	dtstampNS := clock.Stamp()
	codeNS := randomstring.Generate(NotaryCodeLength)
	codeCommon := hashcomposite.ComputeShort([]byte(codeBB + codeNS))

	s.notarizations = append(s.notarizations, notarizeRecord{
		blackboxID: blackboxID, notaryAuthorization: notaryAuthorization,
		dtstampBB: dtstampBB, dtstampNS: dtstampNS,
		codeBB: codeBB, codeNS: codeNS, codeCommon: codeCommon,
	})
	s.logEvent(dtstampNS, fmt.Sprintf("notarize_blackbox succeeded | blackboxID: %s", blackboxID))
	return []string{dtstampNS, codeNS, codeCommon}, nil
}

// checkBlackBoxRegistration answers from the registration table, not
// the notarization log — a black box that registered but never
// notarized is still registered.
func (s *ReferenceServer) checkBlackBoxRegistration(args []string) ([]string, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("notary: check_blackbox_registration: expected 1 arg, got %d", len(args))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registrations[args[0]]
	return []string{boolString(ok)}, nil
}

func (s *ReferenceServer) checkNotarization(args []string) ([]string, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("notary: check_notarization: expected 2 args, got %d", len(args))
	}
	blackboxID, notaryAuthorization := args[0], args[1]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notarizations {
		if n.blackboxID == blackboxID && n.notaryAuthorization == notaryAuthorization {
			return []string{boolString(true)}, nil
		}
	}
	return []string{boolString(false)}, nil
}

func (s *ReferenceServer) logEvent(dtstamp, event string) {
	s.eventlog = append(s.eventlog, eventlogEntry{dtstamp: dtstamp, event: event})
}

// RegistrationCount reports how many distinct black boxes are
// registered — used by tests to assert S6's "exactly one row" claim.
func (s *ReferenceServer) RegistrationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registrations)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
