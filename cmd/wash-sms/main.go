package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/risk"
	"github.com/humanitylink/go-wash-reports/internal/smscodec"
)

// wash-sms is a field tool for checking wire messages by hand:
//
//	wash-sms decode "WASH ZA T1 010012-WC"
//	wash-sms encode < observation.json
const usage = `usage:
  wash-sms decode <message>      decode a wire message and score it
  wash-sms encode                read an observation (JSON) from stdin, print the wire message`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "decode":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		if err := decode(strings.Join(os.Args[2:], " ")); err != nil {
			fmt.Fprintln(os.Stderr, "decode:", err)
			os.Exit(1)
		}
	case "encode":
		if err := encode(os.Stdin); err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func decode(msg string) error {
	obs, err := smscodec.Decode(msg)
	if err != nil {
		// Fall back to the loose keyword form before giving up.
		obs, err = smscodec.ParseFreeText(msg)
		if err != nil {
			return err
		}
	}

	assessment := risk.Classify(obs.Kind, obs)
	out := struct {
		Observation *models.Observation   `json:"observation"`
		Assessment  models.RiskAssessment `json:"assessment"`
	}{obs, assessment}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func encode(r io.Reader) error {
	var obs models.Observation
	if err := json.NewDecoder(r).Decode(&obs); err != nil {
		return err
	}
	if !obs.Kind.Valid() {
		return fmt.Errorf("kind must be TOILET or WATER_POINT")
	}
	if !obs.Functional.Valid() {
		return fmt.Errorf("functional must be yes, limited or no")
	}

	fmt.Println(smscodec.Encode(&obs))
	return nil
}
