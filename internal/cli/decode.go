package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/tracemacro/internal/ui"
	"github.com/aidanlsb/tracemacro/internal/uid"
)

var decodeAt string

type decodeResult struct {
	Macro    string `json:"macro"`
	Encoder  string `json:"encoder"`
	ID       string `json:"id"`
	Hash     int32  `json:"hash"`
	Location string `json:"location,omitempty"`
}

var decodeCmd = &cobra.Command{
	Use:   "decode MACRO TOKEN",
	Short: "Decode one unique-id token with a macro's encoder",
	Long: `Decodes TOKEN the way ingest would for an invocation of MACRO.

Basic tokens hash the whole token. StringAndNumerical tokens must look like
name_number; the number is used as the hash.

Examples:
  tmx decode TRACE NET_CONNECT
  tmx decode TRACE_ID disk_42 --at src/disk.c:120:9`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := parseLocation(decodeAt)
		if err != nil {
			return handleError(ErrInvalidInput, err, "Use --at file:line or file:line:col")
		}

		reg, _, err := loadMergedRegistry()
		if err != nil {
			return err
		}
		def, err := reg.Lookup(args[0])
		if err != nil {
			return handleError(ErrMacroNotFound, err, "Run 'tmx macro list' to see defined macros")
		}

		id, err := uid.Decode(def.Encoder(), args[1], loc)
		if err != nil {
			return handleErrorWithDetails(errorCode(err, ErrInvalidInput), err, "",
				map[string]string{"macro": def.MacroName, "encoder": def.Encoder().String(), "token": args[1]})
		}

		res := decodeResult{Macro: def.MacroName, Encoder: def.Encoder().String(), ID: id.ID, Hash: id.Hash}
		if decodeAt != "" {
			res.Location = loc.String()
		}

		if isJSONOutput() {
			outputSuccess(res, nil)
			return nil
		}
		fmt.Printf("%s  %s\n", ui.Bold.Render("id:  "), id.ID)
		fmt.Printf("%s  %d\n", ui.Bold.Render("hash:"), id.Hash)
		return nil
	},
}

// parseLocation parses "file", "file:line" or "file:line:col". Trailing
// numeric segments are taken from the right so paths may contain colons.
func parseLocation(s string) (uid.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uid.Location{}, nil
	}

	var nums []int
	rest := s
	for len(nums) < 2 {
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			break
		}
		n, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			break
		}
		if n < 0 {
			return uid.Location{}, fmt.Errorf("invalid location %q: negative position", s)
		}
		nums = append([]int{n}, nums...)
		rest = rest[:i]
	}
	if rest == "" {
		return uid.Location{}, fmt.Errorf("invalid location %q: file is empty", s)
	}

	loc := uid.Location{File: rest}
	if len(nums) > 0 {
		loc.Line = nums[0]
	}
	if len(nums) > 1 {
		loc.Column = nums[1]
	}
	return loc, nil
}

var hashCmd = &cobra.Command{
	Use:   "hash TOKEN...",
	Short: "Print the Basic encoder hash of each token",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		type hashed struct {
			Token string `json:"token"`
			Hash  int32  `json:"hash"`
		}
		out := make([]hashed, 0, len(args))
		for _, tok := range args {
			out = append(out, hashed{Token: tok, Hash: uid.Hash(tok)})
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"hashes": out}, &Meta{Count: len(out)})
			return nil
		}
		for _, h := range out {
			fmt.Printf("%d\t%s\n", h.Hash, h.Token)
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeAt, "at", "", "Source location for diagnostics (file:line[:col])")
	decodeCmd.ValidArgsFunction = macroNames
	rootCmd.AddCommand(decodeCmd, hashCmd)
}
