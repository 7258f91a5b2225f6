// Package tts speaks status messages through libespeak-ng.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int
speechcmd_say(const char *text, const char *voice)
{
	if (!text)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs;
	memset(&specs, 0, sizeof(specs));
	specs.languages = voice;
	espeak_SetVoiceByProperties(&specs);

	espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"
)

// espeak keeps global state, one utterance at a time.
var mu sync.Mutex

func Speak(text string, voice string) error {
	if text == "" {
		return nil
	}
	if voice == "" {
		voice = "en"
	}

	mu.Lock()
	defer mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	cvoice := C.CString(voice)
	defer C.free(unsafe.Pointer(cvoice))

	if rc := C.speechcmd_say(ctext, cvoice); rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return nil
}

// Speaker reads notifications aloud.
type Speaker struct {
	Voice string
}

func (s Speaker) Notify(message string) {
	if err := Speak(message, s.Voice); err != nil {
		slog.Warn("Failed to voice out", "err", err)
	}
}
