// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package screens

import (
	"time"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/navigation"
	"github.com/jeranaias/keycabinet/internal/session"
)

// ScanPhase is the progress of a simulated scan.
type ScanPhase int

const (
	ScanReady ScanPhase = iota
	ScanRunning
	ScanComplete
)

// ScanScreen simulates a card or biometric reader. The scanned user is
// the configured simulation user for the method.
type ScanScreen struct {
	Base
	method  session.AuthMethod
	phase   ScanPhase
	started time.Time
	length  time.Duration
}

// NewCardScanScreen returns the card_scan screen.
func NewCardScanScreen(d *Deps) *ScanScreen {
	return &ScanScreen{Base: newBase(navigation.ScreenCardScan, d), method: session.MethodCard}
}

// NewBiometricScanScreen returns the biometric_scan screen.
func NewBiometricScanScreen(d *Deps) *ScanScreen {
	return &ScanScreen{Base: newBase(navigation.ScreenBiometricScan, d), method: session.MethodBiometric}
}

// Method returns the method this screen scans for.
func (s *ScanScreen) Method() session.AuthMethod { return s.method }

// Phase returns the scan progress.
func (s *ScanScreen) Phase() ScanPhase { return s.phase }

// OnEnter resets the reader.
func (s *ScanScreen) OnEnter() error {
	s.phase = ScanReady
	return s.Base.OnEnter()
}

// Handle implements Screen.
func (s *ScanScreen) Handle(in Input) {
	switch in {
	case InputScan, InputEnter:
		s.startScan()
	case InputBack, InputCancel:
		s.logUserAction("scan_back_pressed", nil)
		s.stopTimers()
		s.phase = ScanReady
		s.navigate(navigation.ScreenAuthSelection, navigation.DirectionRight)
	}
}

func (s *ScanScreen) scanLength() time.Duration {
	t := s.deps.cfg().Timing
	d := config.Seconds(t.ScanSeconds)
	if s.method == session.MethodBiometric {
		d += config.Seconds(t.BiometricExtraSeconds)
	}
	return d
}

func (s *ScanScreen) startScan() {
	if s.phase != ScanReady {
		return
	}
	s.phase = ScanRunning
	s.started = s.deps.now()
	s.length = s.scanLength()
	s.logUserAction("scan_started", map[string]string{"method": string(s.method)})
	s.after(s.length, s.completeScan)
}

func (s *ScanScreen) completeScan() {
	sim := s.deps.cfg().Simulation
	user := sim.CardUser
	if s.method == session.MethodBiometric {
		user = sim.BiometricUser
	}
	s.phase = ScanComplete
	s.deps.Flow.Claim(user, s.method)
	s.logUserAction("scan_completed", map[string]string{"method": string(s.method), "user": user})
	s.after(config.Seconds(s.deps.cfg().Timing.ScanSettleSeconds), s.proceedToPIN)
}

func (s *ScanScreen) proceedToPIN() {
	s.navigate(navigation.ScreenPINEntry, navigation.DirectionLeft)
}

// Progress returns the fraction of the scan completed.
func (s *ScanScreen) Progress() float64 {
	switch s.phase {
	case ScanComplete:
		return 1
	case ScanRunning:
		if s.length <= 0 {
			return 1
		}
		p := float64(s.deps.now().Sub(s.started)) / float64(s.length)
		if p > 1 {
			p = 1
		}
		if p < 0 {
			p = 0
		}
		return p
	}
	return 0
}

// View implements Screen.
func (s *ScanScreen) View() View {
	title, prompt := "Card Scan", "Present your card and press Scan"
	if s.method == session.MethodBiometric {
		title, prompt = "Biometric Scan", "Place your finger on the scanner and press Scan"
	}

	v := View{Title: title, Progress: s.Progress()}
	switch s.phase {
	case ScanReady:
		v.Lines = []string{prompt}
		v.Actions = []Action{{Input: InputScan, Label: "Scan"}, {Input: InputBack, Label: "Back"}}
	case ScanRunning:
		v.Lines = []string{"Scanning..."}
		v.Busy = true
		v.Actions = []Action{{Input: InputBack, Label: "Cancel"}}
	case ScanComplete:
		user, _, _ := s.deps.Flow.Claimed()
		v.Lines = []string{"Scan complete", "Welcome, " + user}
	}
	return v
}
