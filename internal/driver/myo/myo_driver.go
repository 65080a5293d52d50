// internal/driver/myo/myo_driver.go
package myo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"myo-recorder/internal/protocol"
	"myo-recorder/internal/utils"
	"myo-recorder/pkg/devicetypes"
	"myo-recorder/pkg/driver"
)

const (
	readChunk             = 256
	defaultCommandTimeout = 5 * time.Second
	staleConnections      = 3
)

// TransportFactory opens the transport for a dongle port
type TransportFactory func(port string) (protocol.Transport, error)

// MyoDriver implements driver.Session for a Myo armband behind a BLED112
// dongle speaking BGAPI over a serial port
type MyoDriver struct {
	config       *driver.SessionConfig
	newTransport TransportFactory
	transport    protocol.Transport
	logger       *utils.DeviceLogger
	handler      driver.SampleHandler
	decoder      decoder

	connection byte
	linkLost   bool

	stateMutex sync.RWMutex
	connected  bool
	deviceInfo driver.DeviceInfo
	packets    int64
}

// NewMyoDriver creates a Myo session that opens serial transports
func NewMyoDriver(config *driver.SessionConfig, logger *zap.Logger) (driver.Session, error) {
	factory := func(port string) (protocol.Transport, error) {
		serialConfig := protocol.DefaultSerialConfig(port)
		if config.BaudRate > 0 {
			serialConfig.BaudRate = config.BaudRate
		}
		if config.ReadTimeout > 0 {
			serialConfig.ReadTimeout = config.ReadTimeout
		}
		return protocol.CreateTransport(serialConfig, logger)
	}
	return NewMyoDriverWithTransport(config, factory, logger), nil
}

// NewMyoDriverWithTransport creates a Myo session over transports built by factory
func NewMyoDriverWithTransport(config *driver.SessionConfig, factory TransportFactory, logger *zap.Logger) *MyoDriver {
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = defaultCommandTimeout
	}

	return &MyoDriver{
		config:       config,
		newTransport: factory,
		logger:       utils.NewDeviceLogger(logger, config.DeviceID, "myo"),
		deviceInfo: driver.DeviceInfo{
			Kind: "myo",
			Port: config.Port,
		},
	}
}

// SetSampleHandler sets the receiver of decoded samples
func (d *MyoDriver) SetSampleHandler(handler driver.SampleHandler) {
	d.handler = handler
}

// Connect opens the dongle, finds or dials the armband and verifies the
// link by reading its firmware version
func (d *MyoDriver) Connect(ctx context.Context, identity devicetypes.Identity, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	port := d.config.Port
	if identity.Kind == devicetypes.IdentityPortPath {
		port = identity.Path
	}

	if err := d.openTransport(ctx, port); err != nil {
		return driver.NewConnectError(classify(ctx, driver.TransportUnavailable), err)
	}

	if err := d.connect(ctx, identity); err != nil {
		d.closeTransport()
		return driver.NewConnectError(classify(ctx, driver.HandshakeRejected), err)
	}

	return nil
}

func (d *MyoDriver) connect(ctx context.Context, identity devicetypes.Identity) error {
	d.resetDongle(ctx)

	addr := identity.Address
	if !identity.HasAddress() {
		found, err := d.discover(ctx)
		if err != nil {
			return fmt.Errorf("failed to discover armband: %w", err)
		}
		addr = found
	}

	d.logger.Info("Connecting to armband", zap.String("address", strings.ToUpper(addr.String())))

	rsp, err := d.command(ctx, classGAP, cmdGAPConnectDirect, connectDirectPayload(addr))
	if err != nil {
		return fmt.Errorf("connect_direct: %w", err)
	}
	if err := checkResult("connect_direct", rsp.payload, 0); err != nil {
		return err
	}

	status, err := d.waitFor(ctx, func(p packet) bool {
		return p.is(true, classConnection, evtConnectionStatus) && len(p.payload) >= 2 && p.payload[1]&0x01 != 0
	})
	if err != nil {
		return fmt.Errorf("waiting for connection status: %w", err)
	}
	d.connection = status.payload[0]
	d.linkLost = false

	firmware, hardware, err := d.readFirmware(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify armband: %w", err)
	}

	d.stateMutex.Lock()
	d.connected = true
	d.deviceInfo.Address = strings.ToUpper(addr.String())
	d.deviceInfo.Port = d.transport.Name()
	d.deviceInfo.FirmwareVersion = firmware
	d.deviceInfo.HardwareRev = hardware
	d.deviceInfo.ConnectedAt = time.Now()
	d.stateMutex.Unlock()

	d.logger.Info("Armband connected",
		zap.String("address", strings.ToUpper(addr.String())),
		zap.Uint8("connection", d.connection),
		zap.String("firmware", firmware),
		zap.Int("hardware_rev", hardware),
	)
	return nil
}

// resetDongle ends any running GAP procedure and drops links left over
// from an earlier process. Failures are expected when nothing was open.
func (d *MyoDriver) resetDongle(ctx context.Context) {
	if _, err := d.command(ctx, classGAP, cmdGAPEndProcedure, nil); err != nil {
		d.logger.Debug("End procedure failed", zap.Error(err))
	}
	for conn := byte(0); conn < staleConnections; conn++ {
		if _, err := d.command(ctx, classConnection, cmdConnectionDisconnect, []byte{conn}); err != nil {
			d.logger.Debug("Stale connection cleanup failed", zap.Uint8("connection", conn), zap.Error(err))
		}
	}
}

// discover scans until an advertiser lists the armband control service
func (d *MyoDriver) discover(ctx context.Context) (net.HardwareAddr, error) {
	d.logger.Info("Scanning for armband")

	if _, err := d.command(ctx, classGAP, cmdGAPDiscover, []byte{discoverGeneric}); err != nil {
		return nil, err
	}

	rsp, err := d.waitFor(ctx, func(p packet) bool {
		if !p.is(true, classGAP, evtGAPScanResponse) || len(p.payload) < 11 {
			return false
		}
		n := int(p.payload[10])
		return len(p.payload) >= 11+n && advertisesControlService(p.payload[11:11+n])
	})

	// The scan must be stopped before dialing
	if _, endErr := d.command(ctx, classGAP, cmdGAPEndProcedure, nil); endErr != nil {
		d.logger.Debug("End procedure failed", zap.Error(endErr))
	}
	if err != nil {
		return nil, err
	}

	return fromBGAPIAddress(rsp.payload[2:8]), nil
}

func (d *MyoDriver) readFirmware(ctx context.Context) (string, int, error) {
	rsp, err := d.command(ctx, classAttClient, cmdAttClientReadByHandle, readByHandlePayload(d.connection, handleFirmwareVersion))
	if err != nil {
		return "", 0, err
	}
	if err := checkResult("read_by_handle", rsp.payload, 1); err != nil {
		return "", 0, err
	}

	var value []byte
	_, err = d.waitFor(ctx, func(p packet) bool {
		if !p.is(true, classAttClient, evtAttClientAttributeValue) {
			return false
		}
		conn, handle, v, ok := attributeValue(p.payload)
		if ok && conn == d.connection && handle == handleFirmwareVersion {
			value = v
			return true
		}
		return false
	})
	if err != nil {
		return "", 0, err
	}

	return decodeFirmware(value)
}

// SetSleepMode keeps the armband awake or lets it sleep when idle
func (d *MyoDriver) SetSleepMode(ctx context.Context, mode driver.SleepMode) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.CommandTimeout)
	defer cancel()

	if err := d.writeAttribute(ctx, handleCommand, setSleepModeCommand(byte(mode))); err != nil {
		return fmt.Errorf("failed to set sleep mode: %w", err)
	}
	return nil
}

// SetMode subscribes to the requested streams and sends the set-mode command
func (d *MyoDriver) SetMode(ctx context.Context, emg driver.EMGMode, imu driver.IMUMode, classifier driver.ClassifierMode) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.CommandTimeout)
	defer cancel()

	imuCCCD := cccdOff
	if imu != driver.IMUModeNone {
		imuCCCD = cccdNotify
	}
	if err := d.writeAttribute(ctx, handleIMUDescriptor, imuCCCD); err != nil {
		return fmt.Errorf("failed to configure imu notifications: %w", err)
	}

	emgCCCD := cccdOff
	if emg != driver.EMGModeNone {
		emgCCCD = cccdNotify
	}
	for _, handle := range emgDescriptorHandles {
		if err := d.writeAttribute(ctx, handle, emgCCCD); err != nil {
			return fmt.Errorf("failed to configure emg notifications: %w", err)
		}
	}

	classifierCCCD := cccdOff
	if classifier != driver.ClassifierModeDisabled {
		classifierCCCD = cccdIndicate
	}
	if err := d.writeAttribute(ctx, handleClassifierDescriptor, classifierCCCD); err != nil {
		return fmt.Errorf("failed to configure classifier indications: %w", err)
	}

	if err := d.writeAttribute(ctx, handleCommand, setModeCommand(byte(emg), byte(imu), byte(classifier))); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	return nil
}

// writeAttribute writes value and waits for the procedure to complete
func (d *MyoDriver) writeAttribute(ctx context.Context, handle uint16, value []byte) error {
	if !d.Connected() {
		return fmt.Errorf("not connected")
	}

	rsp, err := d.command(ctx, classAttClient, cmdAttClientAttributeWrite, attributeWritePayload(d.connection, handle, value))
	if err != nil {
		return err
	}
	if err := checkResult(fmt.Sprintf("write 0x%02x", handle), rsp.payload, 1); err != nil {
		return err
	}

	done, err := d.waitFor(ctx, func(p packet) bool {
		return p.is(true, classAttClient, evtAttClientProcedureCompleted) && len(p.payload) >= 1 && p.payload[0] == d.connection
	})
	if err != nil {
		return err
	}
	return checkResult(fmt.Sprintf("write 0x%02x procedure", handle), done.payload, 1)
}

// Listen runs one poll cycle bounded by the transport read timeout
func (d *MyoDriver) Listen(ctx context.Context) (int, error) {
	if d.transport == nil || !d.transport.IsOpen() {
		return 0, &driver.TransportError{Op: "listen", Err: protocol.ErrNotOpen}
	}

	data, err := d.transport.Read(ctx, readChunk)
	if err != nil {
		return 0, &driver.TransportError{Op: "read", Err: err}
	}
	d.decoder.feed(data)

	n := 0
	for {
		p, ok := d.decoder.next()
		if !ok {
			break
		}
		n++
		d.dispatch(p)
	}

	if d.linkLost {
		return n, &driver.TransportError{Op: "listen", Err: driver.ErrLinkLost}
	}
	return n, nil
}

// Disconnect drops the radio link and closes the transport. It is safe
// to call in any state.
func (d *MyoDriver) Disconnect() error {
	if d.transport == nil {
		d.setConnected(false)
		return nil
	}

	if d.Connected() {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.CommandTimeout)
		if _, err := d.command(ctx, classConnection, cmdConnectionDisconnect, []byte{d.connection}); err != nil {
			d.logger.Debug("Disconnect command failed", zap.Error(err))
		}
		cancel()
	}

	d.setConnected(false)
	return d.closeTransport()
}

// Connected reports whether the link is up and verified
func (d *MyoDriver) Connected() bool {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	return d.connected
}

// GetDeviceInfo returns what is known about the armband
func (d *MyoDriver) GetDeviceInfo() *driver.DeviceInfo {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	info := d.deviceInfo
	info.PacketsReceived = d.packets
	if d.transport != nil {
		stats := d.transport.GetStats()
		info.Transport = &driver.TransportStats{
			Name:         d.transport.Name(),
			Open:         d.transport.IsOpen(),
			BytesRead:    stats.BytesRead,
			BytesWritten: stats.BytesWritten,
			Errors:       stats.ErrorCount,
			LastActivity: stats.LastActivity,
		}
	}
	return &info
}

// command sends a command and waits for its response
func (d *MyoDriver) command(ctx context.Context, class, id byte, payload []byte) (packet, error) {
	if err := d.transport.Write(ctx, encodeCommand(class, id, payload)); err != nil {
		return packet{}, err
	}
	return d.waitFor(ctx, func(p packet) bool {
		return p.is(false, class, id)
	})
}

// waitFor reads until match accepts a packet. Everything else is
// dispatched as usual so samples are not lost during commands.
func (d *MyoDriver) waitFor(ctx context.Context, match func(packet) bool) (packet, error) {
	for {
		for {
			p, ok := d.decoder.next()
			if !ok {
				break
			}
			if match(p) {
				d.countPacket()
				return p, nil
			}
			d.dispatch(p)
		}

		if err := ctx.Err(); err != nil {
			return packet{}, err
		}

		data, err := d.transport.Read(ctx, readChunk)
		if err != nil {
			return packet{}, err
		}
		d.decoder.feed(data)
	}
}

// dispatch handles an unsolicited packet
func (d *MyoDriver) dispatch(p packet) {
	d.countPacket()

	switch {
	case p.is(true, classAttClient, evtAttClientAttributeValue):
		_, handle, value, ok := attributeValue(p.payload)
		if !ok {
			d.logger.Debug("Malformed attribute value", zap.Stringer("packet", p))
			return
		}
		d.handleAttribute(handle, value)

	case p.is(true, classConnection, evtConnectionDisconnected):
		if len(p.payload) >= 1 && p.payload[0] == d.connection && d.Connected() {
			reason, _ := resultCode(p.payload, 1)
			d.logger.Warn("Armband link dropped", zap.Uint16("reason", reason))
			d.linkLost = true
			d.setConnected(false)
		}

	default:
		d.logger.Debug("Ignoring packet", zap.Stringer("packet", p))
	}
}

func (d *MyoDriver) handleAttribute(handle uint16, value []byte) {
	if d.handler == nil {
		return
	}

	if handle == handleIMUData {
		orientation, acceleration, gyroscope, err := decodeIMU(value)
		if err != nil {
			d.logger.Debug("Dropping imu notification", zap.Error(err))
			return
		}
		d.handler.OnIMU(orientation, acceleration, gyroscope)
		return
	}

	if emgChannel(handle) >= 0 {
		samples, err := decodeEMG(value)
		if err != nil {
			d.logger.Debug("Dropping emg notification", zap.Error(err))
			return
		}
		d.handler.OnEMG(samples[0])
		d.handler.OnEMG(samples[1])
	}
}

func (d *MyoDriver) openTransport(ctx context.Context, port string) error {
	if d.transport != nil && d.transport.Name() != port {
		d.closeTransport()
		d.setTransport(nil)
	}

	if d.transport == nil {
		transport, err := d.newTransport(port)
		if err != nil {
			return err
		}
		d.setTransport(transport)
	}

	if err := d.transport.Open(ctx); err != nil {
		return err
	}
	d.decoder.reset()
	return nil
}

func (d *MyoDriver) closeTransport() error {
	d.setConnected(false)
	if d.transport == nil {
		return nil
	}
	if err := d.transport.Close(); err != nil {
		return &driver.TransportError{Op: "close", Err: err}
	}
	return nil
}

func (d *MyoDriver) setTransport(transport protocol.Transport) {
	d.stateMutex.Lock()
	d.transport = transport
	d.stateMutex.Unlock()
}

func (d *MyoDriver) setConnected(connected bool) {
	d.stateMutex.Lock()
	d.connected = connected
	d.stateMutex.Unlock()
}

func (d *MyoDriver) countPacket() {
	d.stateMutex.Lock()
	d.packets++
	d.stateMutex.Unlock()
}

// checkResult fails when the result code at offset is not zero
func checkResult(op string, payload []byte, offset int) error {
	code, err := resultCode(payload, offset)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if code != 0 {
		return fmt.Errorf("%s rejected: result 0x%04x", op, code)
	}
	return nil
}

// classify maps a failure under ctx to a connect error kind
func classify(ctx context.Context, fallback driver.ConnectErrorKind) driver.ConnectErrorKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return driver.Timeout
	}
	return fallback
}
