package control

import (
	"fmt"
	"strconv"
	"strings"

	"octostep/motion"
)

const maxTokens = 4

// Processor turns command lines into motion requests and formats the
// structured replies. It owns the motor manager and remembers the last
// response code per channel for STATUS reporting.
type Processor struct {
	manager      *motion.Manager
	lastResponse [motion.MotorCount]ResponseCode
}

// NewProcessor returns a processor with a freshly reset manager.
func NewProcessor() *Processor {
	return &Processor{manager: motion.NewManager()}
}

// Manager exposes the underlying motor manager for the firmware glue
// (service ticks, command buffer export).
func (p *Processor) Manager() *motion.Manager {
	return p.manager
}

// Reset reinitializes the manager and the per-channel response history.
func (p *Processor) Reset() {
	p.manager.Reset()
	for i := range p.lastResponse {
		p.lastResponse[i] = RespOk
	}
}

// Service forwards the elapsed wall-clock delta to the manager.
func (p *Processor) Service(elapsedUs uint32) {
	p.manager.Service(elapsedUs)
}

// ConfigureShiftRegister wires the sleep register through the manager.
func (p *Processor) ConfigureShiftRegister(pins motion.ShiftRegisterPins, activeHigh bool) {
	p.manager.ConfigureShiftRegister(pins, activeHigh)
}

// MotorState reads the channel snapshot.
func (p *Processor) MotorState(channel int) motion.MotorState {
	return p.manager.State(channel)
}

// LastResponse reads the last recorded response code for the channel.
func (p *Processor) LastResponse(channel int) ResponseCode {
	if channel < 0 || channel >= motion.MotorCount {
		return RespOk
	}
	return p.lastResponse[channel]
}

// ProcessLine handles one complete command line and returns the reply.
// An empty reply means ignored chatter.
func (p *Processor) ProcessLine(raw string) Response {
	var out Response

	line := strings.TrimSpace(raw)
	if line == "" {
		out.prefix(RespEmptyCommand)
		return out
	}
	if len(line) > MaxCommandLength {
		out.prefix(RespPayloadTooLong)
		return out
	}

	verb := line
	payload := ""
	hasColon := false
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		verb = line[:idx]
		payload = line[idx+1:]
		hasColon = true
	}
	verb = strings.TrimSpace(verb)
	payload = strings.TrimSpace(payload)

	if verb == "" {
		out.prefix(RespUnknownVerb)
		return out
	}
	if len(verb) > maxVerbLength {
		if !hasColon {
			// Ignore chatter that doesn't follow <VERB>[:payload] framing.
			return out
		}
		out.prefix(RespVerbTooLong)
		return out
	}

	switch strings.ToUpper(verb) {
	case "HELP":
		p.handleHelp(&out)
	case "MOVE":
		p.handleMove(payload, &out)
	case "SLEEP":
		p.handleSleep(payload, &out)
	case "WAKE":
		p.handleWake(payload, &out)
	case "STATUS":
		p.handleStatus(payload, &out)
	case "HOME":
		p.handleHome(payload, &out)
	default:
		out.prefix(RespUnknownVerb)
	}
	return out
}

// tokenize splits a payload on commas into at most maxTokens trimmed
// tokens. A fifth comma-separated field is a parse error.
func tokenize(payload string) ([]string, bool) {
	working := strings.TrimSpace(payload)
	if working == "" {
		return nil, true
	}
	parts := strings.Split(working, ",")
	if len(parts) > maxTokens {
		return nil, false
	}
	tokens := make([]string, len(parts))
	for i, part := range parts {
		tokens[i] = strings.TrimSpace(part)
	}
	return tokens, true
}

func parseInt(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func parseInt32(token string) (int32, bool) {
	value, ok := parseInt(token)
	if !ok || value < -1<<31 || value > 1<<31-1 {
		return 0, false
	}
	return int32(value), true
}

func parseChannel(token string) (int, bool) {
	value, ok := parseInt(token)
	if !ok || value < 0 || value >= motion.MotorCount {
		return 0, false
	}
	return int(value), true
}

func (p *Processor) recordResponse(channel int, code ResponseCode) {
	if channel < 0 || channel >= motion.MotorCount {
		return
	}
	p.lastResponse[channel] = code
}

func mapFault(fault motion.FaultCode) ResponseCode {
	switch fault {
	case motion.FaultNone:
		return RespOk
	case motion.FaultLimitClipped:
		return RespLimitViolation
	case motion.FaultDriverFault:
		return RespDriverFault
	case motion.FaultHomingTimeout:
		return RespNotReady
	}
	return RespInvalidArgument
}

func (p *Processor) handleHelp(out *Response) {
	out.prefix(RespOk)
	for _, entry := range helpTable {
		out.append(fmt.Sprintf("HELP:%s|%s|%s", entry.verb, entry.usage, entry.description))
	}
}

func (p *Processor) handleMove(payload string, out *Response) {
	if payload == "" {
		out.prefix(RespMissingPayload)
		return
	}

	tokens, ok := tokenize(payload)
	if !ok || len(tokens) < 2 {
		out.prefix(RespParseError)
		return
	}

	channel, ok := parseChannel(tokens[0])
	if !ok {
		out.prefix(RespInvalidChannel)
		return
	}

	position, ok := parseInt(tokens[1])
	if !ok {
		out.prefix(RespInvalidArgument)
		return
	}

	speed := int32(motion.DefaultSpeedHz)
	accel := int32(motion.DefaultAcceleration)

	if len(tokens) >= 3 && tokens[2] != "" {
		speed, ok = parseInt32(tokens[2])
		if !ok || speed <= 0 {
			out.prefix(RespInvalidArgument)
			return
		}
	}
	if len(tokens) >= 4 && tokens[3] != "" {
		accel, ok = parseInt32(tokens[3])
		if !ok || accel <= 0 {
			out.prefix(RespInvalidArgument)
			return
		}
	}

	result, timing := p.manager.QueueMove(channel, position, speed, accel)

	if result == motion.ResultBusy {
		out.prefix(RespBusy)
		out.append("MOVE:ERR=BUSY")
		p.recordResponse(channel, RespBusy)
		return
	}
	if result == motion.ResultFault {
		out.prefix(RespDriverFault)
		out.append("MOVE:ERR=DRIVER_FAULT")
		p.recordResponse(channel, RespDriverFault)
		return
	}

	state := p.manager.State(channel)
	out.prefix(RespOk)
	if result == motion.ResultClippedToLimit {
		p.recordResponse(channel, RespLimitViolation)
	} else {
		p.recordResponse(channel, RespOk)
	}

	out.append(fmt.Sprintf("MOVE:CH=%d POS=%d TARGET=%d STATE=%s",
		channel, state.Position, state.TargetPosition, state.Phase))
	out.append(fmt.Sprintf("MOVE:SPEED=%d ACC=%d PLAN_US=%d STEPS=%d",
		state.SpeedHz, state.Acceleration, timing.TotalDurationUs, timing.TotalSteps))

	if result == motion.ResultClippedToLimit {
		out.append("MOVE:LIMIT_CLIPPED=1")
	}
}

func (p *Processor) handleSleep(payload string, out *Response) {
	if payload == "" {
		out.prefix(RespMissingPayload)
		return
	}

	channel, ok := parseChannel(payload)
	if !ok {
		out.prefix(RespInvalidChannel)
		return
	}

	p.manager.ForceSleep(channel)
	p.recordResponse(channel, RespOk)

	out.prefix(RespOk)
	out.append(fmt.Sprintf("SLEEP:CH=%d STATE=SLEEP", channel))
}

func (p *Processor) handleWake(payload string, out *Response) {
	if payload == "" {
		out.prefix(RespMissingPayload)
		return
	}

	channel, ok := parseChannel(payload)
	if !ok {
		out.prefix(RespInvalidChannel)
		return
	}

	p.manager.ForceWake(channel)
	p.manager.ClearFault(channel)
	p.recordResponse(channel, RespOk)

	out.prefix(RespOk)
	out.append(fmt.Sprintf("WAKE:CH=%d STATE=AWAKE", channel))
}

func (p *Processor) handleStatus(payload string, out *Response) {
	if payload == "" {
		out.prefix(RespOk)
		for channel := 0; channel < motion.MotorCount; channel++ {
			p.writeStatusForMotor(channel, out)
		}
		return
	}

	tokens, ok := tokenize(payload)
	if !ok || len(tokens) != 1 {
		out.prefix(RespParseError)
		return
	}

	channel, ok := parseChannel(tokens[0])
	if !ok {
		out.prefix(RespInvalidChannel)
		return
	}

	out.prefix(RespOk)
	p.writeStatusForMotor(channel, out)
}

func (p *Processor) handleHome(payload string, out *Response) {
	if payload == "" {
		out.prefix(RespMissingPayload)
		return
	}

	tokens, ok := tokenize(payload)
	if !ok || len(tokens) < 1 || len(tokens) > 3 {
		out.prefix(RespParseError)
		return
	}

	channel, ok := parseChannel(tokens[0])
	if !ok {
		out.prefix(RespInvalidChannel)
		return
	}

	request := motion.HomingRequest{
		TravelRange: motion.DefaultTravelRange,
		Backoff:     motion.DefaultBackoff,
	}

	if len(tokens) >= 2 && tokens[1] != "" {
		travel, ok := parseInt(tokens[1])
		if !ok || travel <= 0 {
			out.prefix(RespInvalidArgument)
			return
		}
		request.TravelRange = travel
	}
	if len(tokens) == 3 && tokens[2] != "" {
		backoff, ok := parseInt(tokens[2])
		if !ok || backoff < 0 {
			out.prefix(RespInvalidArgument)
			return
		}
		request.Backoff = backoff
	}

	result := p.manager.BeginHoming(channel, request)
	if result == motion.ResultBusy {
		out.prefix(RespBusy)
		out.append("HOME:ERR=BUSY")
		p.recordResponse(channel, RespBusy)
		return
	}
	if result == motion.ResultFault {
		out.prefix(RespDriverFault)
		out.append("HOME:ERR=DRIVER_FAULT")
		p.recordResponse(channel, RespDriverFault)
		return
	}

	p.recordResponse(channel, RespOk)
	out.prefix(RespOk)
	out.append(fmt.Sprintf("HOME:CH=%d RANGE=%d BACKOFF=%d",
		channel, request.TravelRange, request.Backoff))
}

func (p *Processor) writeStatusForMotor(channel int, out *Response) {
	state := p.manager.State(channel)
	code := p.lastResponse[channel]
	if state.Fault != motion.FaultNone {
		code = mapFault(state.Fault)
	}
	sleep := 0
	if state.Asleep {
		sleep = 1
	}
	out.append(fmt.Sprintf("STATUS:CH=%d POS=%d TARGET=%d STATE=%s SLEEP=%d ERR=%s",
		channel, state.Position, state.TargetPosition, state.Phase, sleep, code))
	out.append(fmt.Sprintf("STATUS:PROFILE CH=%d SPEED=%d ACC=%d PLAN_US=%d",
		channel, state.SpeedHz, state.Acceleration, state.PlannedDurationUs))
}
