// Package audioeq applies per-device parametric equalizer presets to audio
// output hardware.
//
// Settings are a JSON or YAML document listing device entries. Each entry
// carries match criteria (name, UID, manufacturer, model UID) and an ordered
// list of presets; a preset is an ordered list of biquad bands plus an
// output gain multiplier.
//
// # Loading Settings
//
// A settings document is decoded, validated against a [Schema] of path
// rules and converted into [DeviceEntry] values:
//
//	entries, err := audioeq.LoadFile("eq.yaml")
//	if err != nil {
//	    var se *audioeq.SchemaError
//	    if errors.As(err, &se) {
//	        log.Printf("bad settings at %s", se.Path)
//	    }
//	    log.Fatal(err)
//	}
//
// Schema failures match [ErrSchemaUnknownPath], [ErrSchemaWrongType] or
// [ErrSchemaUnknownType] with errors.Is; conversion failures match [ErrLoad].
//
// # Running the Coordinator
//
// [Service] owns the settings file and a device [Host]. It matches every
// attached device to the first entry whose criteria it satisfies, applies
// the entry's selected preset (the first one by default) and reapplies on
// hotplug, default-device changes and settings reloads:
//
//	host := audioeq.NewMemoryHost(10)
//	svc, err := audioeq.New(audioeq.Config{
//	    SettingsPath:  "eq.yaml",
//	    Host:          host,
//	    WatchSettings: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go svc.Run(ctx)
//
//	snap := svc.Snapshot()
//	for _, d := range snap.Devices {
//	    fmt.Println(d.Info.Name, d.Entry, d.Preset)
//	}
//
// A failed reload keeps the previous settings active. Devices no entry
// matches run pass-through: every slot neutral and unity gain.
//
// # Coefficients
//
// Bands are synthesized with the RBJ audio-EQ cookbook formulas and packed
// band-major as b0, b1, b2, a1, a2 with a0 normalized to one:
//
//	coeffs, err := audioeq.Coefficients(preset, audioeq.RateDAT, 2)
//
// Band i, channel c starts at offset (i·channels+c)·5. [Render] runs a
// preset over planar buffers offline.
//
// # Thread Safety
//
// All [Service] mutation happens on the goroutine running [Service.Run].
// Request methods may be called from any goroutine and block until the
// worker has handled them. [Service.Snapshot] never blocks.
package audioeq
